// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	content := []byte(`
# waypost local overrides
PORT=5005
export WAYPOST_API_KEY="sk-something"
EMPTY=
QUOTED='single quoted'
`)

	env := make(map[string]string)
	if err := Parse(env, content, ".env.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]string{
		"PORT":            "5005",
		"WAYPOST_API_KEY": "sk-something",
		"EMPTY":           "",
		"QUOTED":          "single quoted",
	}
	for key, want := range cases {
		if got, ok := env[key]; !ok || got != want {
			t.Errorf("env[%q]: got %q (present=%v), want %q", key, got, ok, want)
		}
	}
}

func TestParse_MissingEquals(t *testing.T) {
	t.Parallel()

	env := make(map[string]string)
	if err := Parse(env, []byte("JUSTAKEY\n"), ".env.local"); err == nil {
		t.Fatal("expected error for line without '='")
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	env, err := Load(filepath.Join(t.TempDir(), ".env.local"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env) != 0 {
		t.Errorf("expected empty env, got %v", env)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env.local")
	if err := os.WriteFile(path, []byte("PORT=9000\n"), 0o644); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	env, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env["PORT"] != "9000" {
		t.Errorf("PORT: got %q, want %q", env["PORT"], "9000")
	}
}

func TestPort(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		env  map[string]string
		want int
	}{
		{"absent", map[string]string{}, DefaultPort},
		{"valid", map[string]string{"PORT": "5005"}, 5005},
		{"garbage", map[string]string{"PORT": "not-a-port"}, DefaultPort},
		{"out of range", map[string]string{"PORT": "70000"}, DefaultPort},
		{"zero", map[string]string{"PORT": "0"}, DefaultPort},
	}

	for _, tc := range cases {
		if got := Port(tc.env); got != tc.want {
			t.Errorf("%s: Port: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

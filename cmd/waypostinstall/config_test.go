// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/wayposthq/waypost-installer/internal/config"
)

func overrideConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config.SetConfigDirOverride(dir)
	t.Cleanup(config.Reset)
	return dir
}

func newTestCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	return cmd
}

func TestConfigInitCreatesDefaultFile(t *testing.T) {
	dir := overrideConfigDir(t)

	var out bytes.Buffer
	if err := initConfig(newTestCommand(&out)); err != nil {
		t.Fatalf("initConfig() error = %v", err)
	}

	cfgPath := filepath.Join(dir, "config.cue")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("reading created config: %v", err)
	}
	if !strings.Contains(string(data), "path_strategy:") {
		t.Errorf("created config missing defaults:\n%s", data)
	}
	if !strings.Contains(out.String(), cfgPath) {
		t.Errorf("output does not name the created file: %q", out.String())
	}

	// A second init leaves an edited file alone.
	if err := os.WriteFile(cfgPath, []byte(`setup_port: 9000`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := initConfig(newTestCommand(&out)); err != nil {
		t.Fatalf("initConfig() error = %v", err)
	}
	if got := readFileString(t, cfgPath); got != `setup_port: 9000` {
		t.Errorf("init overwrote an existing config: %q", got)
	}
}

func TestConfigPathNamesConfigFile(t *testing.T) {
	dir := overrideConfigDir(t)

	var out bytes.Buffer
	if err := showConfigPath(newTestCommand(&out)); err != nil {
		t.Fatalf("showConfigPath() error = %v", err)
	}
	if !strings.Contains(out.String(), filepath.Join(dir, "config.cue")) {
		t.Errorf("output missing config file path: %q", out.String())
	}
}

func readFileString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

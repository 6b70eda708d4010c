// SPDX-License-Identifier: MPL-2.0

// Package envfile reads the installation's local environment override file
// (.env.local). The orchestrator never writes this file; it only preserves
// it across upgrades and reads a handful of keys (the web server port) for
// the completion message.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// DefaultPort is the waypost web server port when .env.local sets none.
const DefaultPort = 4664

// Load reads and parses the env file at path. A missing file is not an
// error: the override file is optional by contract, so an empty map is
// returned instead.
func Load(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	env := make(map[string]string)
	if err := Parse(env, content, path); err != nil {
		return nil, err
	}
	return env, nil
}

// Parse merges dotenv-format content into env. Supported format:
//   - Lines starting with # are comments
//   - Empty lines are ignored
//   - KEY=value (unquoted; surrounding whitespace trimmed)
//   - KEY="value" / KEY='value' (surrounding quotes stripped)
//   - export KEY=value (export prefix is optional and ignored)
//   - KEY= (empty value)
//
// The filename parameter is used for error messages.
func Parse(env map[string]string, content []byte, filename string) error {
	lines := strings.Split(string(content), "\n")

	for i, line := range lines {
		lineNum := i + 1

		line = strings.TrimSuffix(line, "\r")
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "export ")
		line = strings.TrimSpace(line)

		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("%s:%d: invalid format (missing '=')", filename, lineNum)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("%s:%d: empty variable name", filename, lineNum)
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		env[key] = value
	}

	return nil
}

// Port returns the PORT override from env, falling back to DefaultPort when
// the key is absent or not a valid port number.
func Port(env map[string]string) int {
	raw, ok := env["PORT"]
	if !ok {
		return DefaultPort
	}
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port <= 0 || port > 65535 {
		return DefaultPort
	}
	return port
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// The vars file keeps values (API keys in particular) out of committed
// config files. One name=value entry per line; blank lines and #-comments
// are ignored.

// GetVarsFilePath returns the location of the user's vars file.
func GetVarsFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gridprobe", "vars.txt"), nil
}

// LoadVarsFromFile reads the vars file. A missing file is an empty set,
// not an error.
func LoadVarsFromFile() (map[string]string, error) {
	path, err := GetVarsFilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, value, ok := strings.Cut(line, "="); ok {
			vars[name] = value
		}
	}
	return vars, nil
}

// SaveVarsToFile rewrites the vars file with entries sorted by name.
func SaveVarsToFile(vars map[string]string) error {
	path, err := GetVarsFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# managed by 'gridprobe vars'\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s\n", name, vars[name])
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}

// GetVar looks up a single stored variable.
func GetVar(name string) (string, error) {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return "", err
	}
	value, ok := vars[name]
	if !ok {
		return "", fmt.Errorf("variable %q is not set", name)
	}
	return value, nil
}

// SetVar stores or replaces a variable.
func SetVar(name, value string) error {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return err
	}
	vars[name] = value
	return SaveVarsToFile(vars)
}

// DeleteVar removes a stored variable.
func DeleteVar(name string) error {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return err
	}
	if _, ok := vars[name]; !ok {
		return fmt.Errorf("variable %q is not set", name)
	}
	delete(vars, name)
	return SaveVarsToFile(vars)
}

// ListVars returns the stored variable names in sorted order.
func ListVars() ([]string, error) {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

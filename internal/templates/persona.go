package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadPersonas reads every *.yaml / *.yml file in dir as one template. A
// missing directory yields no templates.
func LoadPersonas(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}

	var out []Template
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read persona %s: %w", path, err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse persona %s: %w", path, err)
		}
		if strings.TrimSpace(t.Name) == "" {
			t.Name = strings.TrimSuffix(e.Name(), ext)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SavePersona writes t to <dir>/<name>.yaml, creating dir if needed.
func SavePersona(dir string, t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("persona name is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, t.Name+".yaml"), data, 0644)
}

// DeletePersona removes the persona file for name.
func DeletePersona(dir, name string) error {
	filename := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("persona '%s' not found", name)
	}
	return os.Remove(filename)
}

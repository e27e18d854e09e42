package template

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Decode reads a template from JSON or YAML. JSON is recognised by a leading
// '{'.
func Decode(data []byte) (Template, error) {
	var t Template
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return t, fmt.Errorf("decode template: empty document")
	}

	var err error
	if trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &t)
	} else {
		err = yaml.Unmarshal(trimmed, &t)
	}
	if err != nil {
		return Template{}, fmt.Errorf("decode template: %w", err)
	}
	t.Format = normalizeFormat(t.Format)
	return t, nil
}

// EncodeYAML writes t as YAML.
func EncodeYAML(t Template) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJSON writes t as indented JSON.
func EncodeJSON(t Template) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return data, nil
}

// Builtins returns the templates shipped with the binary, sorted by
// identifier.
func Builtins() ([]Template, error) {
	return LoadDir(builtinFS, "builtin")
}

// LoadDir decodes every .yaml, .yml and .json file in dir.
func LoadDir(fsys fs.FS, dir string) ([]Template, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	var out []Template
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", e.Name(), err)
		}
		t, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func normalizeFormat(f model.Format) model.Format {
	if p := model.ParseFormat(string(f)); p != model.FormatUnknown {
		return p
	}
	return f
}

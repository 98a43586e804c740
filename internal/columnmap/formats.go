package columnmap

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/budget-tracker/internal/parse"
)

//go:embed formats.yaml
var embeddedFormats []byte

// Format is a known bank export layout.
type Format struct {
	Name        string           `yaml:"name"`
	Delimiter   string           `yaml:"delimiter"`
	Encodings   []string         `yaml:"encodings"` // tried in order on re-read
	DateFormats []string         `yaml:"date_formats"` // strftime patterns
	Columns     map[Field]string `yaml:"columns"`
}

type formatFile struct {
	Formats []Format `yaml:"formats"`
}

// Comma returns the field delimiter of delimited exports in this layout.
func (f Format) Comma() (rune, bool) {
	r, size := utf8.DecodeRuneInString(f.Delimiter)
	if size == 0 || r == utf8.RuneError || size != len(f.Delimiter) {
		return 0, false
	}
	return r, true
}

// Match resolves every configured column against headers. It reports false
// unless all of them are present.
func (f Format) Match(headers []string) (Mapping, bool) {
	m := Mapping{
		Columns: make(map[Field]string, len(f.Columns)),
		Source:  f.Name,
	}
	for field, want := range f.Columns {
		actual, ok := resolve(headers, want)
		if !ok {
			return Mapping{}, false
		}
		m.Columns[field] = actual
	}
	for _, df := range f.DateFormats {
		m.DateLayouts = append(m.DateLayouts, parse.ConvertLayout(df))
	}
	return m, m.Valid()
}

// Registry holds the known formats in detection order.
type Registry struct {
	formats []Format
}

// LoadFormats parses a formats YAML document.
func LoadFormats(data []byte) (*Registry, error) {
	var file formatFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("LoadFormats: parsing YAML: %w", err)
	}
	for i, f := range file.Formats {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("LoadFormats: format %d has no name", i)
		}
		probe := Mapping{Columns: f.Columns}
		if !probe.Valid() {
			return nil, fmt.Errorf("LoadFormats: format %q lacks %s", f.Name, strings.Join(probe.Missing(), ", "))
		}
	}
	return &Registry{formats: file.Formats}, nil
}

// DefaultRegistry returns the embedded bank formats.
func DefaultRegistry() *Registry {
	reg, err := LoadFormats(embeddedFormats)
	if err != nil {
		panic(err)
	}
	return reg
}

// Formats returns the formats in detection order.
func (r *Registry) Formats() []Format {
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Lookup finds a format by case-insensitive name.
func (r *Registry) Lookup(name string) (Format, bool) {
	for _, f := range r.formats {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f, true
		}
	}
	return Format{}, false
}

// Detect returns the first format whose configured columns are a subset of headers.
func (r *Registry) Detect(headers []string) (Format, Mapping, bool) {
	for _, f := range r.formats {
		if m, ok := f.Match(headers); ok {
			return f, m, true
		}
	}
	return Format{}, Mapping{}, false
}

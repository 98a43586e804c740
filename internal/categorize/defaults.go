package categorize

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

type defaultCategory struct {
	Name        string           `yaml:"name"`
	Color       string           `yaml:"color"`
	Description string           `yaml:"description"`
	Rules       []domain.RuleDoc `yaml:"rules"`
}

// KeywordGroup is one entry of the clusterer keyword table.
type KeywordGroup struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type defaultsFile struct {
	Categories      []defaultCategory `yaml:"categories"`
	ClusterKeywords []KeywordGroup    `yaml:"cluster_keywords"`
	ClusterColors   []string          `yaml:"cluster_colors"`
}

// Defaults is the parsed system configuration.
type Defaults struct {
	Categories   []domain.Category
	Descriptions map[string]string
	Keywords     []KeywordGroup
	Colors       []string
}

// ParseDefaults parses a defaults YAML document.
func ParseDefaults(data []byte) (*Defaults, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ParseDefaults: parsing YAML: %w", err)
	}

	d := &Defaults{
		Descriptions: make(map[string]string, len(file.Categories)),
		Keywords:     file.ClusterKeywords,
		Colors:       file.ClusterColors,
	}
	for _, c := range file.Categories {
		rules, err := domain.RulesFromDocs(c.Rules)
		if err != nil {
			return nil, fmt.Errorf("ParseDefaults: category %q: %w", c.Name, err)
		}
		color := c.Color
		if color == "" {
			color = domain.DefaultColor
		}
		d.Categories = append(d.Categories, domain.Category{Name: c.Name, Color: color, Rules: rules})
		d.Descriptions[c.Name] = c.Description
	}
	return d, nil
}

var (
	defaultsOnce sync.Once
	defaults     *Defaults
)

// SystemDefaults returns the embedded defaults. The result is shared; use
// DefaultCategories for a copy that may be modified.
func SystemDefaults() *Defaults {
	defaultsOnce.Do(func() {
		d, err := ParseDefaults(embeddedDefaults)
		if err != nil {
			panic(err)
		}
		defaults = d
	})
	return defaults
}

// DefaultCategories returns a copy of the built-in categories.
func DefaultCategories() []domain.Category {
	return cloneCategories(SystemDefaults().Categories)
}

func cloneCategories(in []domain.Category) []domain.Category {
	out := make([]domain.Category, len(in))
	for i, c := range in {
		c.Rules = append(domain.Rules(nil), c.Rules...)
		out[i] = c
	}
	return out
}

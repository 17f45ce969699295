// Package catalog holds the formula set shipped with mathrender. The command
// line uses it to list, search, and preload formulas.
package catalog

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

//go:embed formulas.yaml
var builtin []byte

type Formula struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Latex       string `yaml:"latex"`
	Category    string `yaml:"category"`
}

type Category struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
	Count int    `yaml:"-"`
}

// Catalog is immutable once loaded.
type Catalog struct {
	formulas   []Formula
	categories []Category
	byID       map[int]int
}

type document struct {
	Categories []Category `yaml:"categories"`
	Formulas   []Formula  `yaml:"formulas"`
}

var ErrNotFound = errors.New("catalog: formula not found")

// Builtin parses the embedded formula set.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// Parse reads a catalog document. Formula IDs must be unique and every
// formula must name a declared category.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		formulas:   doc.Formulas,
		categories: doc.Categories,
		byID:       make(map[int]int, len(doc.Formulas)),
	}

	catIndex := make(map[string]int, len(c.categories))
	for i, cat := range c.categories {
		catIndex[cat.ID] = i
	}

	for i, f := range c.formulas {
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate formula id %d", f.ID)
		}
		ci, ok := catIndex[f.Category]
		if !ok {
			return nil, fmt.Errorf("parse catalog: formula %d has unknown category %q", f.ID, f.Category)
		}
		c.byID[f.ID] = i
		c.categories[ci].Count++
	}
	return c, nil
}

func (c *Catalog) All() []Formula {
	return slices.Clone(c.formulas)
}

func (c *Catalog) Len() int {
	return len(c.formulas)
}

func (c *Catalog) ByID(id int) (Formula, error) {
	i, ok := c.byID[id]
	if !ok {
		return Formula{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return c.formulas[i], nil
}

func (c *Catalog) ByCategory(category string) []Formula {
	var out []Formula
	for _, f := range c.formulas {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// Categories returns categories with their formula counts.
func (c *Catalog) Categories() []Category {
	return slices.Clone(c.categories)
}

func (c *Catalog) Category(id string) (Category, bool) {
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// Search matches keyword case-insensitively against names and descriptions.
func (c *Catalog) Search(keyword string) []Formula {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return nil
	}

	var out []Formula
	for _, f := range c.formulas {
		if strings.Contains(strings.ToLower(f.Name), k) ||
			strings.Contains(strings.ToLower(f.Description), k) {
			out = append(out, f)
		}
	}
	return out
}

// Related returns up to limit other formulas from the same category.
func (c *Catalog) Related(id, limit int) []Formula {
	f, err := c.ByID(id)
	if err != nil {
		return nil
	}

	var out []Formula
	for _, g := range c.formulas {
		if len(out) == limit {
			break
		}
		if g.ID != id && g.Category == f.Category {
			out = append(out, g)
		}
	}
	return out
}

// Next and Previous walk the catalog in reading order.
func (c *Catalog) Next(id int) (Formula, bool) {
	i, ok := c.byID[id]
	if !ok || i == len(c.formulas)-1 {
		return Formula{}, false
	}
	return c.formulas[i+1], true
}

func (c *Catalog) Previous(id int) (Formula, bool) {
	i, ok := c.byID[id]
	if !ok || i == 0 {
		return Formula{}, false
	}
	return c.formulas[i-1], true
}

// Latex returns every formula's source in catalog order.
func (c *Catalog) Latex() []string {
	out := make([]string, len(c.formulas))
	for i, f := range c.formulas {
		out[i] = f.Latex
	}
	return out
}

// Fingerprint identifies the catalog contents; it changes when any formula
// source does.
func (c *Catalog) Fingerprint() string {
	h := blake3.New()
	for _, f := range c.formulas {
		_, _ = fmt.Fprintf(h, "%d\x00%s\x00", f.ID, f.Latex)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

package advisor

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
)

// DefaultColor is used for fertilizers the catalog does not know.
const DefaultColor = "#2e7d32"

var builtinCatalog = []entities.FertilizerCatalogEntry{
	{Name: "Urea", Color: "#3498db", Description: "Nitrogen-rich (46% N) for vegetative growth"},
	{Name: "DAP", Color: "#e74c3c", Description: "Diammonium phosphate (18-46-0) for root development"},
	{Name: "MOP", Color: "#f39c12", Description: "Muriate of potash (0-0-60) for fruit quality"},
}

// Catalog maps fertilizer names to display metadata. Read-only after construction.
type Catalog struct {
	entries map[string]entities.FertilizerCatalogEntry
}

func DefaultCatalog() *Catalog {
	c := &Catalog{entries: make(map[string]entities.FertilizerCatalogEntry, len(builtinCatalog))}
	for _, e := range builtinCatalog {
		c.entries[e.Name] = e
	}
	return c
}

type catalogFile struct {
	Fertilizers []entities.FertilizerCatalogEntry `yaml:"fertilizers"`
}

// ParseCatalog merges a yaml document over the built-in entries.
//
//	fertilizers:
//	  - name: NPK 20-20-20
//	    color: "#8e44ad"
//	    description: Balanced <strong>starter</strong> blend
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := DefaultCatalog()
	for i, e := range f.Fertilizers {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		e.Description = sanitizeDescription(e.Description)
		if e.Color == "" {
			e.Color = DefaultColor
		}
		c.entries[e.Name] = e
	}
	return c, nil
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Lookup never fails: unknown names get DefaultColor and no description.
func (c *Catalog) Lookup(name string) entities.FertilizerCatalogEntry {
	if c != nil {
		if e, ok := c.entries[name]; ok {
			return e
		}
	}
	return entities.FertilizerCatalogEntry{Name: name, Color: DefaultColor}
}

// Has reports whether name has its own entry.
func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[name]
	return ok
}

// Missing returns the names without an entry, in input order.
func (c *Catalog) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if !c.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }

var (
	descPolicyOnce sync.Once
	descPolicy     *bluemonday.Policy
)

// descriptions end up unescaped in the result card: only inline emphasis survives
func sanitizeDescription(raw string) string {
	descPolicyOnce.Do(func() {
		p := bluemonday.StrictPolicy()
		p.AllowElements("b", "strong", "i", "em", "sub", "sup", "br")
		descPolicy = p
	})
	return strings.TrimSpace(descPolicy.Sanitize(raw))
}

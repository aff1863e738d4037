package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

//go:embed catalog.schema.json
var catalogSchemaJSON string

type document struct {
	BaselineEnergy int                           `yaml:"baseline_energy"`
	Environments   map[string]map[string]float64 `yaml:"environments"`
	Entries        []Entry                       `yaml:"entries"`
}

type Catalog struct {
	BaselineEnergy int
	entries        map[string]Entry
	order          []string
	environments   map[string]map[string]float64
}

// LoadDefault parses the catalog embedded in the binary.
func LoadDefault() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		BaselineEnergy: doc.BaselineEnergy,
		entries:        make(map[string]Entry, len(doc.Entries)),
		environments:   doc.Environments,
	}
	for _, e := range doc.Entries {
		if _, dup := c.entries[e.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate key %q", e.Key)
		}
		c.entries[e.Key] = e
		c.order = append(c.order, e.Key)
	}

	if err := c.checkReferences(); err != nil {
		return nil, err
	}
	return c, nil
}

// validateDocument checks the raw YAML against the embedded JSON schema.
func validateDocument(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("catalog is not representable as JSON: %w", err)
	}
	var instance interface{}
	if err := json.Unmarshal(asJSON, &instance); err != nil {
		return fmt.Errorf("catalog is not representable as JSON: %w", err)
	}

	schema, err := jsonschema.CompileString("catalog.schema.json", catalogSchemaJSON)
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("catalog failed schema validation: %w", err)
	}
	return nil
}

func (c *Catalog) checkReferences() error {
	for _, key := range c.order {
		e := c.entries[key]
		for req := range e.Requires {
			dep, ok := c.entries[req]
			if !ok {
				return fmt.Errorf("catalog: %s requires unknown entry %q", key, req)
			}
			if !dep.Kind.Leveled() {
				return fmt.Errorf("catalog: %s requires %q which has no levels", key, req)
			}
		}
		for kindName := range e.Boosts {
			if _, err := ParseKind(kindName); err != nil {
				return fmt.Errorf("catalog: %s boosts %w", key, err)
			}
		}
		if (e.Kind == KindTech || e.Kind == KindUnit) && e.Energy != (Energy{}) {
			return fmt.Errorf("catalog: %s %s cannot produce or consume energy", e.Kind, key)
		}
		if e.Kind == KindUnit && e.Speed <= 0 {
			return fmt.Errorf("catalog: unit %s needs a positive speed", key)
		}
	}
	return nil
}

func (c *Catalog) Get(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Entries returns every entry in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

func (c *Catalog) ByKind(kind Kind) []Entry {
	var out []Entry
	for _, key := range c.order {
		if e := c.entries[key]; e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// HasEnvironment reports whether env is a known base environment.
func (c *Catalog) HasEnvironment(env string) bool {
	_, ok := c.environments[env]
	return ok
}

func (c *Catalog) Environments() []string {
	names := make([]string, 0, len(c.environments))
	for name := range c.environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Multipliers returns the energy link multipliers for env. Links that are
// not listed scale by 1.
func (c *Catalog) Multipliers(env string) map[string]float64 {
	out := make(map[string]float64, len(c.environments[env]))
	for link, m := range c.environments[env] {
		out[strings.ToLower(link)] = m
	}
	return out
}

package npc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadDefinitionFromBytes parses a single definition from raw YAML bytes.
//
// Definitions that fail their own validity rules still load; validity is
// advisory and reported when an NPC begins play.
//
// Precondition: data must be valid YAML for a single Definition.
// Postcondition: Returns a non-nil *Definition or a decoding error.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing definition YAML: %w", err)
	}
	return &def, nil
}

// LoadDefinitions reads every *.yaml file in dir in lexicographic order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all definitions or an error on the first read or
// parse failure; on error, the partial result is discarded.
func LoadDefinitions(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading definition dir %q: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		def, err := LoadDefinitionFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// UnassignedKeyPrefix prefixes the catalog key of a definition authored without an ID.
const UnassignedKeyPrefix = "unassigned-"

// Catalog indexes definitions by ID.
//
// A Catalog is immutable after NewCatalog returns and is safe for concurrent reads.
type Catalog struct {
	byKey map[string]*Definition
	keys  []string
}

// NewCatalog builds a Catalog from defs.
//
// A definition without an ID is still usable, so it is kept under a generated
// key (UnassignedKeyPrefix followed by its position in defs) and reported as
// a warning.
//
// Precondition: defs must not contain nil entries; logger must be non-nil.
// Postcondition: Returns an error only if two definitions share a non-empty ID.
func NewCatalog(defs []*Definition, logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]*Definition, len(defs))}
	for i, def := range defs {
		key := def.ID
		if key == "" {
			key = fmt.Sprintf("%s%d", UnassignedKeyPrefix, i)
			logger.Warn("catalog: definition has no id",
				zap.String("display_name", def.DisplayName),
				zap.String("key", key),
			)
		}
		if _, exists := c.byKey[key]; exists {
			return nil, fmt.Errorf("catalog: duplicate definition id %q", key)
		}
		c.byKey[key] = def
		c.keys = append(c.keys, key)
	}
	sort.Strings(c.keys)
	return c, nil
}

// Get returns the definition stored under key: its ID, or the generated key
// of a definition without one.
//
// Postcondition: Returns (def, true) if found, or (nil, false) otherwise.
func (c *Catalog) Get(key string) (*Definition, bool) {
	def, ok := c.byKey[key]
	return def, ok
}

// All returns every definition ordered by key.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, 0, len(c.keys))
	for _, key := range c.keys {
		out = append(out, c.byKey[key])
	}
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.keys)
}

package schema

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/rime-bridge/errors"
)

// Catalog is the set of schemas and configs found in the data directories.
type Catalog struct {
	Schemas map[string]*Schema
	Configs map[string]map[string]any
	order   []string
}

// Load scans dirs in order; later directories override earlier ones.
// Missing directories are skipped. A file that fails to parse fails the
// whole load.
func Load(logger *zap.Logger, dirs ...string) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		Schemas: make(map[string]*Schema),
		Configs: make(map[string]map[string]any),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Debug("data directory missing", zap.String("dir", dir))
				continue
			}
			return nil, errors.Load("read data directory "+dir, err)
		}

		for _, ent := range entries {
			name := ent.Name()
			if ent.IsDir() || !strings.HasSuffix(name, configSuffix) {
				continue
			}
			path := filepath.Join(dir, name)

			if strings.HasSuffix(name, schemaSuffix) {
				s, err := LoadFile(path)
				if err != nil {
					return nil, err
				}
				c.Schemas[s.ID] = s
				logger.Debug("schema loaded", zap.String("id", s.ID), zap.String("path", path))
				continue
			}

			cfg, err := loadConfig(path)
			if err != nil {
				return nil, err
			}
			c.Configs[strings.TrimSuffix(name, configSuffix)] = cfg
		}
	}

	c.order = c.schemaOrder()
	return c, nil
}

func loadConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read config "+path, err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse config "+path)
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	m, ok := Normalize(raw).(map[string]any)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseLoad, "config "+path+" is not a mapping")
	}
	return m, nil
}

// schemaOrder follows default.yaml schema_list, then any remaining
// schemas by id.
func (c *Catalog) schemaOrder() []string {
	var order []string
	seen := make(map[string]bool)

	if list, ok := Lookup(c.Configs["default"], "schema_list"); ok {
		items, _ := list.([]any)
		for _, it := range items {
			m, _ := it.(map[string]any)
			id, _ := m["schema"].(string)
			if _, exists := c.Schemas[id]; exists && !seen[id] {
				order = append(order, id)
				seen[id] = true
			}
		}
	}

	var rest []string
	for id := range c.Schemas {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// SchemaIDs returns schema ids in list order.
func (c *Catalog) SchemaIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Schema returns a schema by id.
func (c *Catalog) Schema(id string) (*Schema, bool) {
	s, ok := c.Schemas[id]
	return s, ok
}

// Config returns the value at a slash-separated key path of a config.
// An empty key returns the whole config.
func (c *Catalog) Config(configID, key string) (any, bool) {
	cfg, ok := c.Configs[configID]
	if !ok {
		return nil, false
	}
	return Lookup(cfg, key)
}

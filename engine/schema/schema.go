// Package schema loads input schemas and configuration files from the
// shared and user data directories, and watches them for changes.
//
// A schema file is named <id>.schema.yaml. Any other <name>.yaml file is a
// config file addressed by name, e.g. default.yaml is config "default".
// Files in the user directory override files of the same name in the
// shared directory.
package schema

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/rime-bridge/errors"
)

const (
	schemaSuffix = ".schema.yaml"
	configSuffix = ".yaml"

	defaultPageSize = 5
)

// Switch is a schema option with its display states.
type Switch struct {
	Name   string   `yaml:"name"`
	States []string `yaml:"states"`
	Reset  *int     `yaml:"reset"`
}

// Entry is one dictionary entry of a table schema.
type Entry struct {
	Text    string
	Comment string
}

// Schema is a parsed schema file.
type Schema struct {
	Table       map[string][]Entry
	ID          string
	Name        string
	Version     string
	Description string
	Alphabet    string
	SelectKeys  string
	Path        string
	Author      []string
	Switches    []Switch
	PageSize    int
}

type schemaFile struct {
	Schema struct {
		SchemaID    string   `yaml:"schema_id"`
		Name        string   `yaml:"name"`
		Version     string   `yaml:"version"`
		Description string   `yaml:"description"`
		Author      []string `yaml:"author"`
	} `yaml:"schema"`
	Switches []Switch `yaml:"switches"`
	Menu     struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"menu"`
	Speller struct {
		Alphabet   string `yaml:"alphabet"`
		SelectKeys string `yaml:"select_keys"`
	} `yaml:"speller"`
	Table map[string][]yaml.Node `yaml:"table"`
}

// Parse decodes a schema document.
func Parse(data []byte) (*Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse schema")
	}
	if f.Schema.SchemaID == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "schema/schema_id is required")
	}

	s := &Schema{
		ID:          f.Schema.SchemaID,
		Name:        f.Schema.Name,
		Version:     f.Schema.Version,
		Description: strings.TrimSpace(f.Schema.Description),
		Author:      f.Schema.Author,
		Switches:    f.Switches,
		PageSize:    f.Menu.PageSize,
		Alphabet:    f.Speller.Alphabet,
		SelectKeys:  f.Speller.SelectKeys,
		Table:       make(map[string][]Entry, len(f.Table)),
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.PageSize <= 0 {
		s.PageSize = defaultPageSize
	}
	if s.Alphabet == "" {
		s.Alphabet = "abcdefghijklmnopqrstuvwxyz"
	}

	for code, nodes := range f.Table {
		entries := make([]Entry, 0, len(nodes))
		for _, n := range nodes {
			e, err := parseEntry(&n)
			if err != nil {
				return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
					Path("table", code).
					Cause(err).
					Detail("line %d", n.Line).
					Build()
			}
			entries = append(entries, e)
		}
		s.Table[code] = entries
	}
	return s, nil
}

// parseEntry accepts "text" or {text: ..., comment: ...}.
func parseEntry(n *yaml.Node) (Entry, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return Entry{Text: n.Value}, nil
	case yaml.MappingNode:
		var e struct {
			Text    string `yaml:"text"`
			Comment string `yaml:"comment"`
		}
		if err := n.Decode(&e); err != nil {
			return Entry{}, err
		}
		return Entry{Text: e.Text, Comment: e.Comment}, nil
	}
	return Entry{}, errors.InvalidInput(errors.PhaseLoad, "entry must be a string or a mapping")
}

// LoadFile reads and parses a schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read schema "+path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.Path = path
	return s, nil
}

// Codes returns the table codes in sorted order.
func (s *Schema) Codes() []string {
	codes := make([]string, 0, len(s.Table))
	for c := range s.Table {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Switch returns the named switch.
func (s *Schema) Switch(name string) (Switch, bool) {
	for _, sw := range s.Switches {
		if sw.Name == name {
			return sw, true
		}
	}
	return Switch{}, false
}

package mapping

import (
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// MappingFile is the YAML shape of a declarative mapping document. Only
// path-based configuration can be expressed here; function-valued settings
// (hooks, converters, resolvers) are programmatic-only.
type MappingFile struct {
	Version  string        `yaml:"version"`
	Mappings []TypeMapping `yaml:"mappings"`
}

// TypeMapping declares one type pair, with type names resolved against a
// caller-supplied namespace.
type TypeMapping struct {
	Source string         `yaml:"source"`
	Target string         `yaml:"target"`
	Fields []FieldMapping `yaml:"fields"`
	Ignore []string       `yaml:"ignore"`
}

// FieldMapping declares one destination member.
type FieldMapping struct {
	Target         string `yaml:"target"`
	Source         string `yaml:"source"`
	Order          int    `yaml:"order"`
	NullSubstitute any    `yaml:"null_substitute"`
}

// Namespace maps declarative type names (e.g. "store.Order") to Go types.
type Namespace map[string]reflect.Type

// LoadFile loads a YAML mapping document from path and builds a Registry.
func LoadFile(path string, types Namespace) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}
	return Load(data, types)
}

// Load parses a YAML mapping document and builds a Registry.
func Load(data []byte, types Namespace) (*Registry, error) {
	var mf MappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	applyDefaults(&mf)

	reg := NewRegistry()
	for i := range mf.Mappings {
		tm, err := buildTypeMap(&mf.Mappings[i], types)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(tm); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func applyDefaults(mf *MappingFile) {
	if mf.Version == "" {
		mf.Version = "1"
	}
}

func buildTypeMap(decl *TypeMapping, types Namespace) (*TypeMap, error) {
	src, ok := types[decl.Source]
	if !ok {
		return nil, fmt.Errorf("source type %q not found in namespace", decl.Source)
	}
	dst, ok := types[decl.Target]
	if !ok {
		return nil, fmt.Errorf("target type %q not found in namespace", decl.Target)
	}

	tm := &TypeMap{Source: src, Dest: dst}

	for _, fm := range decl.Fields {
		opts := []MemberOption{WithOrder(fm.Order)}
		if fm.Source != "" {
			opts = append(opts, FromPath(fm.Source))
		}
		if fm.NullSubstitute != nil {
			opts = append(opts, WithNullSubstitute(fm.NullSubstitute))
		}
		tm.Member(fm.Target, opts...)
	}

	for _, name := range decl.Ignore {
		tm.Member(name, Ignore())
	}

	return tm, nil
}

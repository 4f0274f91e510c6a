package spec

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/cgast/idemverify/pkg/resource"
)

// FactsFile is a YAML document of attributes recorded by a convergence run.
//
//	apiVersion: idemverify/v1
//	kind: Facts
//	resources:
//	  - kind: file
//	    name: /etc/foo
//	    attributes: {action: delete, backup: 5}
type FactsFile struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Resources  []FactEntry `yaml:"resources"`
}

// FactEntry is the recorded state of one resource.
type FactEntry struct {
	Kind       string              `yaml:"kind"`
	Name       string              `yaml:"name"`
	Args       map[string]string   `yaml:"args,omitempty"`
	Attributes resource.Attributes `yaml:"attributes"`
}

// Ref returns the resource reference of the entry.
func (f FactEntry) Ref() resource.Ref {
	return resource.NewRef(resource.Kind(f.Kind), f.Name, f.Args)
}

// LoadFacts reads and checks a facts file.
func LoadFacts(fs afero.Fs, path string) ([]FactEntry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read facts %s: %w", path, err)
	}
	return ParseFacts(data)
}

// ParseFacts parses a facts document. Kinds must be supported; attributes
// are kept raw for the inspector to normalize.
func ParseFacts(data []byte) ([]FactEntry, error) {
	var f FactsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}
	if f.APIVersion != APIVersion {
		return nil, fmt.Errorf("facts: unsupported apiVersion %q (expected %s)", f.APIVersion, APIVersion)
	}
	if f.Kind != KindFacts {
		return nil, fmt.Errorf("facts: unsupported kind %q (expected %s)", f.Kind, KindFacts)
	}
	for i, e := range f.Resources {
		if _, err := resource.Lookup(resource.Kind(e.Kind)); err != nil {
			return nil, fmt.Errorf("facts: resources[%d]: %w", i, err)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("facts: resources[%d].name: required", i)
		}
		if f.Resources[i].Attributes == nil {
			f.Resources[i].Attributes = resource.Attributes{}
		}
	}
	return f.Resources, nil
}

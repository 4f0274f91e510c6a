package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cgast/idemverify/pkg/resource"
)

// Document identity.
const (
	APIVersion = "idemverify/v1"
	KindSpec   = "VerificationSpec"
	KindFacts  = "Facts"
)

// VerificationSpec declares the state a set of resources is expected to be
// in after a convergence run.
type VerificationSpec struct {
	APIVersion string         `yaml:"apiVersion" json:"apiVersion"`
	Kind       string         `yaml:"kind" json:"kind"`
	Meta       SpecMeta       `yaml:"meta" json:"meta"`
	Params     []ParamDef     `yaml:"params,omitempty" json:"params,omitempty"`
	Resources  []ResourceSpec `yaml:"resources" json:"resources"`
}

// SpecMeta contains metadata about the spec.
type SpecMeta struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string   `yaml:"author,omitempty" json:"author,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// ParamDef defines a parameter substituted into {{name}} placeholders.
type ParamDef struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ResourceSpec is one declared resource and its expected attributes.
type ResourceSpec struct {
	Kind   string            `yaml:"kind" json:"kind"`
	Name   string            `yaml:"name" json:"name"`
	Args   map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
	Expect Expectations      `yaml:"expect" json:"expect"`
}

// Ref returns the resource reference the entry declares.
func (r ResourceSpec) Ref() resource.Ref {
	return resource.NewRef(resource.Kind(r.Kind), r.Name, r.Args)
}

// Expected is one attribute: value entry of an expect mapping.
type Expected struct {
	Attribute string `json:"attribute"`
	Value     any    `json:"value"`
	Tag       string `json:"-"` // YAML short tag of the value, "!!str" when quoted
	Line      int    `json:"-"`
}

// Expectations is an expect mapping in document order.
type Expectations []Expected

// UnmarshalYAML keeps the order of the mapping, which a Go map would lose.
func (e *Expectations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expect must be a mapping of attribute: value", node.Line)
	}
	out := make(Expectations, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var v any
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("line %d: expect.%s: %w", val.Line, key.Value, err)
		}
		out = append(out, Expected{Attribute: key.Value, Value: v, Tag: val.ShortTag(), Line: key.Line})
	}
	*e = out
	return nil
}

// MarshalYAML writes the entries back as an ordered mapping.
func (e Expectations) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, x := range e {
		val := &yaml.Node{}
		if err := val.Encode(x.Value); err != nil {
			return nil, fmt.Errorf("expect.%s: %w", x.Attribute, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: x.Attribute}, val)
	}
	return node, nil
}

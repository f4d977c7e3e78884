package r8econf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RootKey is the configuration section holding policy definitions.
const RootKey = "polly"

type (
	// Section is a read-only configuration section: a key, its scalar
	// attributes and its nested sections, both in declaration order.
	Section interface {
		Key() string
		Attributes() Attributes
		Children() []Section
	}

	// Source exposes named top-level sections of a configuration tree.
	Source interface {
		// Section returns the top-level section named key, matched
		// case-insensitively.
		Section(key string) (Section, bool)
	}

	// Node is the in-memory configuration tree produced by [ParseConfig]. It
	// implements both [Section] and [Source].
	Node struct {
		attrs    Attributes
		key      string
		children []*Node
	}
)

// NewNode builds a node; attrs and children are taken in order.
func NewNode(key string, attrs Attributes, children ...*Node) *Node {
	return &Node{key: key, attrs: attrs, children: children}
}

// Key returns the node key.
func (n *Node) Key() string { return n.key }

// Attributes returns the scalar children of the node.
func (n *Node) Attributes() Attributes { return n.attrs }

// Children returns the nested sections of the node.
func (n *Node) Children() []Section {
	out := make([]Section, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}

	return out
}

// Section returns the child named key, matched case-insensitively.
//
//nolint:ireturn // Source contract
func (n *Node) Section(key string) (Section, bool) {
	for _, c := range n.children {
		if strings.EqualFold(c.key, key) {
			return c, true
		}
	}

	return nil, false
}

// LoadConfig reads a YAML or JSON configuration file.
func LoadConfig(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("r8econf: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses a YAML document (JSON is accepted as YAML) into a
// tree. Mapping order is preserved; sequence items become children keyed by
// their index, and scalars become attributes holding their literal text.
func ParseConfig(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("r8econf: parse config: %w", err)
	}

	root := &Node{}
	if len(doc.Content) == 0 {
		return root, nil
	}

	if err := fill(root, doc.Content[0]); err != nil {
		return nil, fmt.Errorf("r8econf: parse config: %w", err)
	}

	return root, nil
}

func fill(n *Node, y *yaml.Node) error {
	switch y.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(y.Content); i += 2 {
			if err := fillChild(n, y.Content[i].Value, y.Content[i+1]); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range y.Content {
			if err := fillChild(n, strconv.Itoa(i), item); err != nil {
				return err
			}
		}
	case yaml.AliasNode:
		return fill(n, y.Alias)
	case yaml.ScalarNode:
		if y.Tag != "!!null" {
			return fmt.Errorf("line %d: section %q: scalar where a mapping is expected", y.Line, n.key)
		}
	default:
		return errors.New("unsupported document node")
	}

	return nil
}

func fillChild(parent *Node, key string, value *yaml.Node) error {
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}

	// An empty value is an empty section, so "Metrics:" declares a step. A
	// spelled out null ("value: null") stays an attribute.
	if value.Kind == yaml.ScalarNode && (value.Tag != "!!null" || value.Value != "") {
		parent.attrs.Set(key, value.Value)
		return nil
	}

	child := &Node{key: key}
	if err := fill(child, value); err != nil {
		return err
	}

	parent.children = append(parent.children, child)

	return nil
}

// Definitions returns every policy definition under [RootKey], in
// declaration order. A missing root section yields no definitions.
func Definitions(src Source) []PolicyDefinition {
	root, ok := src.Section(RootKey)
	if !ok {
		return nil
	}

	sections := root.Children()
	defs := make([]PolicyDefinition, 0, len(sections))

	for _, s := range sections {
		defs = append(defs, definitionOf(s))
	}

	return defs
}

// FindDefinition returns the definition whose name matches name
// case-insensitively.
func FindDefinition(src Source, name string) (PolicyDefinition, bool) {
	root, ok := src.Section(RootKey)
	if !ok {
		return PolicyDefinition{}, false
	}

	for _, s := range root.Children() {
		if strings.EqualFold(s.Key(), name) {
			return definitionOf(s), true
		}
	}

	return PolicyDefinition{}, false
}

func definitionOf(s Section) PolicyDefinition {
	children := s.Children()
	def := PolicyDefinition{Name: s.Key(), Steps: make([]StepDefinition, 0, len(children))}

	for _, step := range children {
		def.Steps = append(def.Steps, StepDefinition{Key: step.Key(), Attributes: step.Attributes()})
	}

	return def
}

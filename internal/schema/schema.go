// Package schema models the subset of JSON Schema the batch encoder relies on:
// an ordered list of properties with their declared types and nested
// properties. Property order is the column order of every encoded line, so
// parsing keeps the order in which properties appear in the source document.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/goccy/go-json"
)

// Property is one declared schema property.
type Property struct {
	Name  string
	Types []string

	// Properties holds nested properties in declared order. HasProperties
	// distinguishes an object declared with an empty property list from one
	// declared without any.
	Properties    []Property
	HasProperties bool
}

// Is reports whether typ is one of the declared types.
func (p Property) Is(typ string) bool {
	return slices.Contains(p.Types, typ)
}

// Schema is an ordered list of top-level properties.
type Schema struct {
	Properties []Property
}

// Columns returns the top-level property names in declared order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		out[i] = p.Name
	}
	return out
}

// Lookup returns the top-level property with the given name.
func (s Schema) Lookup(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Parse decodes a JSON Schema document. Only "properties", "type", "anyOf"
// and "oneOf" are interpreted; every other keyword is skipped.
func Parse(data []byte) (Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := readNode(dec)
	if err != nil {
		return Schema{}, fmt.Errorf("schema: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Schema{}, fmt.Errorf("schema: trailing data after document")
	}
	if root.kind != objectNode {
		return Schema{}, fmt.Errorf("schema: document must be an object")
	}

	p, err := propertyFrom("", root)
	if err != nil {
		return Schema{}, err
	}
	return Schema{Properties: p.Properties}, nil
}

func propertyFrom(name string, n *node) (Property, error) {
	p := Property{Name: name}
	if n.kind != objectNode {
		return p, fmt.Errorf("schema: property %q must be an object", name)
	}

	if t, ok := n.get("type"); ok {
		types, err := typesFrom(t)
		if err != nil {
			return p, fmt.Errorf("schema: property %q: %w", name, err)
		}
		p.Types = types
	}

	if props, ok := n.get("properties"); ok {
		if props.kind != objectNode {
			return p, fmt.Errorf("schema: property %q: properties must be an object", name)
		}
		p.HasProperties = true
		p.Properties = make([]Property, 0, len(props.keys))
		for i, key := range props.keys {
			child, err := propertyFrom(key, props.vals[i])
			if err != nil {
				return p, err
			}
			p.Properties = append(p.Properties, child)
		}
	}

	for _, kw := range []string{"anyOf", "oneOf"} {
		alt, ok := n.get(kw)
		if !ok {
			continue
		}
		if alt.kind != arrayNode {
			return p, fmt.Errorf("schema: property %q: %s must be an array", name, kw)
		}
		for _, item := range alt.items {
			sub, err := propertyFrom(name, item)
			if err != nil {
				return p, err
			}
			for _, t := range sub.Types {
				if !p.Is(t) {
					p.Types = append(p.Types, t)
				}
			}
			if sub.HasProperties && !p.HasProperties {
				p.Properties = sub.Properties
				p.HasProperties = true
			}
		}
	}

	return p, nil
}

func typesFrom(n *node) ([]string, error) {
	switch n.kind {
	case scalarNode:
		s, ok := n.value.(string)
		if !ok {
			return nil, fmt.Errorf("type must be a string or an array of strings")
		}
		return []string{s}, nil
	case arrayNode:
		out := make([]string, 0, len(n.items))
		for _, item := range n.items {
			s, ok := item.value.(string)
			if item.kind != scalarNode || !ok {
				return nil, fmt.Errorf("type must be a string or an array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("type must be a string or an array of strings")
	}
}

package schema

import (
	"fmt"

	"github.com/goccy/go-json"
)

type nodeKind int

const (
	scalarNode nodeKind = iota
	objectNode
	arrayNode
)

// node is an order-preserving JSON tree. Objects keep their keys in document
// order, which a map[string]any would lose.
type node struct {
	kind  nodeKind
	keys  []string
	vals  []*node
	items []*node
	value any
}

func (n *node) get(key string) (*node, bool) {
	for i, k := range n.keys {
		if k == key {
			return n.vals[i], true
		}
	}
	return nil, false
}

func readNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return readFrom(dec, tok)
}

func readFrom(dec *json.Decoder, tok json.Token) (*node, error) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return &node{kind: scalarNode, value: tok}, nil
	}

	switch delim {
	case '{':
		n := &node{kind: objectNode}
		for {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if d, ok := kt.(json.Delim); ok && d == '}' {
				return n, nil
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			child, err := readNode(dec)
			if err != nil {
				return nil, err
			}
			n.keys = append(n.keys, key)
			n.vals = append(n.vals, child)
		}
	case '[':
		n := &node{kind: arrayNode}
		for {
			it, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if d, ok := it.(json.Delim); ok && d == ']' {
				return n, nil
			}
			child, err := readFrom(dec, it)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, child)
		}
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", rune(delim))
	}
}

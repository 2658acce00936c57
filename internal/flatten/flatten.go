// Package flatten turns nested records into flat column maps.
//
// The walk follows the schema, not the record: a property is descended into
// only where schema.Flatten expanded it, so every emitted key is a column and
// a property left unexpanded (a free-form object, or one deeper than the
// maximum level) keeps its whole value for the encoder to render as a single
// composite token. Sequences are never expanded element-wise. Record keys the
// schema does not declare are ignored, and records are never mutated.
package flatten

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/goccy/go-json"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/schema"
)

// Record is one input record as decoded from the source.
type Record = map[string]any

// Flattened maps column names to values. Only schema columns are present; an
// absent column encodes as an empty field.
type Flattened = map[string]any

// node is one schema property as seen by the walk. Expanded nodes descend
// into children; the others emit their value under column.
type node struct {
	key      string
	path     []string
	column   string
	expanded bool
	children []node
}

// Flattener flattens records of one schema.
type Flattener struct {
	nodes   []node
	columns []string
}

// New returns a Flattener for records of sch flattened to maxLevel. It
// expands exactly the properties sch.Flatten(maxLevel) expands; negative
// levels are treated as 0.
func New(sch schema.Schema, maxLevel int) *Flattener {
	f := &Flattener{columns: []string{}}
	f.nodes = f.build(sch.Properties, nil, 0, max(maxLevel, 0))
	return f
}

func (f *Flattener) build(props []schema.Property, parent []string, level, maxLevel int) []node {
	nodes := make([]node, 0, len(props))
	for _, p := range props {
		path := append(slices.Clip(parent), p.Name)
		n := node{key: p.Name, path: path}
		if p.Expands(level, maxLevel) {
			n.expanded = true
			n.children = f.build(p.Properties, path, level+1, maxLevel)
		} else {
			n.column = schema.JoinKey(path)
			f.columns = append(f.columns, n.column)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Columns returns the emitted column names in declared order.
func (f *Flattener) Columns() []string { return f.columns }

// Flatten returns the flattened form of rec.
func (f *Flattener) Flatten(rec Record) (Flattened, error) {
	if rec == nil {
		return nil, &batcherr.InvalidRecordError{Reason: "record is nil"}
	}
	out := make(Flattened, len(f.columns))
	if err := walk(out, f.nodes, rec); err != nil {
		return nil, err
	}
	return out, nil
}

// walk visits nodes in declared order. A value under an expanded property
// that is not a mapping has no column and is skipped.
func walk(out Flattened, nodes []node, m map[string]any) error {
	for _, n := range nodes {
		v, ok := m[n.key]
		if !ok {
			continue
		}
		if n.expanded {
			nested, isMap, err := asMapping(v, n.path)
			if err != nil {
				return err
			}
			if isMap {
				if err := walk(out, n.children, nested); err != nil {
					return err
				}
			}
			continue
		}
		if err := checkKeys(v, n.path); err != nil {
			return err
		}
		out[n.column] = v
	}
	return nil
}

// asMapping reports whether v is a string-keyed mapping, converting named map
// types to map[string]any.
func asMapping(v any, path []string) (map[string]any, bool, error) {
	switch m := v.(type) {
	case nil:
		return nil, false, nil
	case map[string]any:
		return m, true, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false, nil
	}
	if rv.Type().Key().Kind() != reflect.String {
		return nil, false, nonStringKey(path, rv.Type())
	}
	if rv.IsNil() {
		return nil, false, nil
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true, nil
}

// checkKeys verifies that every mapping reachable from v has string keys.
func checkKeys(v any, path []string) error {
	switch t := v.(type) {
	case nil, string, bool, json.Number, float64, int, int64:
		return nil
	case map[string]any:
		for k, child := range t {
			if err := checkKeys(child, append(slices.Clip(path), k)); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, child := range t {
			if err := checkKeys(child, path); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nonStringKey(path, rv.Type())
		}
		iter := rv.MapRange()
		for iter.Next() {
			if err := checkKeys(iter.Value().Interface(), append(slices.Clip(path), iter.Key().String())); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := checkKeys(rv.Index(i).Interface(), path); err != nil {
				return err
			}
		}
	}
	return nil
}

func nonStringKey(path []string, typ reflect.Type) error {
	return &batcherr.InvalidRecordError{
		Path:   schema.JoinKey(path),
		Reason: fmt.Sprintf("mapping keys must be strings, got %s", typ),
	}
}

package schema

import (
	"fmt"
	"slices"

	"csvbatch/internal/batcherr"
)

// Flatten derives the flattened column layout for records flattened to
// maxLevel. Object properties with declared sub-properties are expanded while
// the nesting level is below maxLevel; anything deeper stays a single column.
// Columns keep declared order. A flattened name produced twice is a
// configuration error.
func (s Schema) Flatten(maxLevel int) (Schema, error) {
	if maxLevel < 0 {
		return Schema{}, &batcherr.ConfigurationError{
			Field:   "max_level",
			Message: fmt.Sprintf("must be >= 0, got %d", maxLevel),
		}
	}

	out := flattenProperties(nil, s.Properties, nil, 0, maxLevel)

	seen := make(map[string]struct{}, len(out))
	for _, p := range out {
		if _, dup := seen[p.Name]; dup {
			return Schema{}, &batcherr.ConfigurationError{
				Field:   "schema",
				Message: fmt.Sprintf("duplicate column name produced in schema: %s", p.Name),
			}
		}
		seen[p.Name] = struct{}{}
	}
	return Schema{Properties: out}, nil
}

// Expands reports whether p, found at nesting level, is replaced by its
// sub-properties when flattening to maxLevel. Only objects that declare
// properties expand; free-form objects stay one column.
func (p Property) Expands(level, maxLevel int) bool {
	return p.Is("object") && p.HasProperties && level < maxLevel
}

func flattenProperties(out []Property, props []Property, parent []string, level, maxLevel int) []Property {
	for _, p := range props {
		path := append(slices.Clip(parent), p.Name)
		if p.Expands(level, maxLevel) {
			out = flattenProperties(out, p.Properties, path, level+1, maxLevel)
			continue
		}
		flat := p
		flat.Name = JoinKey(path)
		out = append(out, flat)
	}
	return out
}

package encoder

import (
	"errors"
	"reflect"

	"csvbatch/internal/batcherr"
)

// Delimiter separates fields within a line.
const Delimiter = ','

// Line encodes flattened records in a fixed column order.
type Line struct {
	columns []string
	scalar  *Scalar
}

// NewLine returns a Line encoder for columns.
func NewLine(columns []string) *Line {
	return &Line{columns: columns, scalar: NewScalar()}
}

// Columns returns the column order of encoded lines.
func (l *Line) Columns() []string { return l.columns }

// Append appends one encoded line for rec to dst, without the line
// terminator. The result always has exactly len(Columns()) fields. A column
// gets an empty field when it is absent, null or an empty composite.
func (l *Line) Append(dst []byte, rec map[string]any) ([]byte, error) {
	for i, col := range l.columns {
		if i > 0 {
			dst = append(dst, Delimiter)
		}
		v, ok := rec[col]
		if !ok || blank(v) {
			continue
		}
		var err error
		dst, err = l.scalar.Append(dst, v)
		if err != nil {
			var encErr *batcherr.EncodingError
			if errors.As(err, &encErr) {
				encErr.Column = col
			}
			return dst, err
		}
	}
	return dst, nil
}

// blank reports whether a present value should still produce an empty field.
// Zero numbers, false and the empty string are emitted; null and empty
// mappings or sequences are not.
func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string, bool, int, int64, float64:
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil() || blank(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.Slice {
			return rv.IsNil()
		}
		return rv.Len() == 0
	case reflect.Array:
		return rv.Len() == 0
	}
	return false
}

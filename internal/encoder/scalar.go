// Package encoder renders flattened records as delimited text lines.
//
// Every value is classified into one of a closed set of kinds and rendered
// by that kind's encode function:
//
//	null       -> empty token
//	bool       -> true | false
//	integer    -> base-10 digits
//	decimal    -> exact plain decimal text, no exponent
//	text       -> JSON string literal (quotes, backslash and control characters escaped)
//	composite  -> compact JSON of the value, then quoted as text
//
// Text and composite tokens are always enclosed in double quotes, so the
// field delimiter and the line terminator never appear outside a quoted
// token.
package encoder

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"csvbatch/internal/batcherr"
)

// Kind classifies a value for encoding.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindDecimal
	KindText
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindText:
		return "text"
	case KindComposite:
		return "composite"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

type encodeFunc func(s *Scalar, dst []byte, v any) ([]byte, error)

var encoders = [...]encodeFunc{
	KindNull:      encodeNull,
	KindBool:      encodeBool,
	KindInteger:   encodeInteger,
	KindDecimal:   encodeDecimal,
	KindText:      encodeText,
	KindComposite: encodeComposite,
}

// KindOf classifies v. Unsupported Go types (channels, functions, complex
// numbers, unsafe pointers) return an *batcherr.EncodingError.
func KindOf(v any) (Kind, error) {
	k, _, err := classify(v)
	return k, err
}

// classify returns the kind of v together with the value to encode, with
// pointers resolved.
func classify(v any) (Kind, any, error) {
	switch t := v.(type) {
	case nil:
		return KindNull, nil, nil
	case bool:
		return KindBool, v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInteger, v, nil
	case *big.Int:
		if t == nil {
			return KindNull, nil, nil
		}
		return KindInteger, v, nil
	case json.Number, decimal.Decimal, float32, float64:
		return KindDecimal, v, nil
	case *decimal.Decimal:
		if t == nil {
			return KindNull, nil, nil
		}
		return KindDecimal, *t, nil
	case decimal.NullDecimal:
		if !t.Valid {
			return KindNull, nil, nil
		}
		return KindDecimal, t.Decimal, nil
	case string, []byte, time.Time:
		return KindText, v, nil
	case json.RawMessage:
		return KindComposite, v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return KindNull, nil, nil
		}
		return classify(rv.Elem().Interface())
	case reflect.Bool:
		return KindBool, v, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return KindInteger, v, nil
	case reflect.Float32, reflect.Float64:
		return KindDecimal, v, nil
	case reflect.String:
		return KindText, v, nil
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return KindNull, nil, nil
		}
		return KindComposite, v, nil
	case reflect.Array, reflect.Struct:
		return KindComposite, v, nil
	default:
		return KindNull, nil, &batcherr.EncodingError{
			Type: fmt.Sprintf("%T", v),
			Err:  fmt.Errorf("unsupported value kind %s", rv.Kind()),
		}
	}
}

// Scalar encodes single values. It reuses an internal buffer and is not safe
// for concurrent use.
type Scalar struct {
	scratch bytes.Buffer
	enc     *json.Encoder
}

// NewScalar returns a ready Scalar encoder.
func NewScalar() *Scalar {
	s := &Scalar{}
	s.enc = json.NewEncoder(&s.scratch)
	s.enc.SetEscapeHTML(false)
	return s
}

// Append appends the token for v to dst.
func (s *Scalar) Append(dst []byte, v any) ([]byte, error) {
	k, val, err := classify(v)
	if err != nil {
		return dst, err
	}
	return encoders[k](s, dst, val)
}

func encodeNull(_ *Scalar, dst []byte, _ any) ([]byte, error) {
	return dst, nil
}

func encodeBool(_ *Scalar, dst []byte, v any) ([]byte, error) {
	if b, ok := v.(bool); ok {
		return strconv.AppendBool(dst, b), nil
	}
	return strconv.AppendBool(dst, reflect.ValueOf(v).Bool()), nil
}

func encodeInteger(_ *Scalar, dst []byte, v any) ([]byte, error) {
	switch n := v.(type) {
	case int:
		return strconv.AppendInt(dst, int64(n), 10), nil
	case int64:
		return strconv.AppendInt(dst, n, 10), nil
	case *big.Int:
		return n.Append(dst, 10), nil
	}
	rv := reflect.ValueOf(v)
	if rv.CanInt() {
		return strconv.AppendInt(dst, rv.Int(), 10), nil
	}
	return strconv.AppendUint(dst, rv.Uint(), 10), nil
}

func encodeDecimal(_ *Scalar, dst []byte, v any) ([]byte, error) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		if err != nil {
			return dst, &batcherr.EncodingError{Type: "json.Number", Err: err}
		}
		return append(dst, plain(d)...), nil
	case decimal.Decimal:
		return append(dst, plain(n)...), nil
	}

	rv := reflect.ValueOf(v)
	bits := 64
	if rv.Kind() == reflect.Float32 {
		bits = 32
	}
	f := rv.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return dst, &batcherr.EncodingError{
			Type: fmt.Sprintf("%T", v),
			Err:  fmt.Errorf("non-finite number %v", f),
		}
	}
	return strconv.AppendFloat(dst, f, 'f', -1, bits), nil
}

// plain renders d without an exponent, keeping its scale ("1.50" stays
// "1.50").
func plain(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func encodeText(s *Scalar, dst []byte, v any) ([]byte, error) {
	var str string
	switch t := v.(type) {
	case string:
		str = t
	case []byte:
		str = string(t)
	case time.Time:
		str = t.UTC().Format(time.RFC3339Nano)
	default:
		str = reflect.ValueOf(v).String()
	}
	return s.appendJSON(dst, str)
}

func encodeComposite(s *Scalar, dst []byte, v any) ([]byte, error) {
	s.scratch.Reset()
	if raw, ok := v.(json.RawMessage); ok {
		if err := json.Compact(&s.scratch, raw); err != nil {
			return dst, &batcherr.EncodingError{Type: "json.RawMessage", Err: err}
		}
	} else if err := s.enc.Encode(v); err != nil {
		return dst, &batcherr.EncodingError{Type: fmt.Sprintf("%T", v), Err: err}
	}
	compact := string(bytes.TrimSuffix(s.scratch.Bytes(), []byte("\n")))
	return s.appendJSON(dst, compact)
}

// appendJSON appends v as a JSON literal without the encoder's trailing
// newline.
func (s *Scalar) appendJSON(dst []byte, v any) ([]byte, error) {
	s.scratch.Reset()
	if err := s.enc.Encode(v); err != nil {
		return dst, &batcherr.EncodingError{Type: fmt.Sprintf("%T", v), Err: err}
	}
	return append(dst, bytes.TrimSuffix(s.scratch.Bytes(), []byte("\n"))...), nil
}

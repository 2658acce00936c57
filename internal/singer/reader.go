// Package singer reads Singer tap output: one JSON message per line.
//
// SCHEMA messages register the schema of a stream; RECORD messages carry one
// record each and are only accepted after their stream's schema. STATE and
// ACTIVATE_VERSION are passed through untouched. Numbers inside records are
// kept as json.Number so decimals survive without loss.
package singer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/goccy/go-json"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/flatten"
	"csvbatch/internal/schema"
)

// MessageType is the "type" field of a Singer message.
type MessageType string

const (
	TypeSchema          MessageType = "SCHEMA"
	TypeRecord          MessageType = "RECORD"
	TypeState           MessageType = "STATE"
	TypeActivateVersion MessageType = "ACTIVATE_VERSION"
)

// MaxLineSize bounds a single message line.
const MaxLineSize = 64 << 20

// Message is one decoded line. Only the fields of its Type are set.
type Message struct {
	Type   MessageType
	Stream string
	Line   int

	Record flatten.Record

	Schema        schema.Schema
	KeyProperties []string

	Value json.RawMessage

	Version int64
}

type envelope struct {
	Type          MessageType     `json:"type"`
	Stream        string          `json:"stream"`
	Record        json.RawMessage `json:"record"`
	Schema        json.RawMessage `json:"schema"`
	KeyProperties []string        `json:"key_properties"`
	Value         json.RawMessage `json:"value"`
	Version       int64           `json:"version"`
}

// Reader decodes messages from an input stream. A UTF-8 BOM is skipped and
// UTF-16 input with a BOM is transcoded to UTF-8.
type Reader struct {
	sc      *bufio.Scanner
	line    int
	schemas map[string]schema.Schema
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Reader{sc: sc, schemas: map[string]schema.Schema{}}
}

// Next returns the next message, or io.EOF once the input is drained. Blank
// lines are skipped.
func (r *Reader) Next() (Message, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := r.decode(line)
		if err != nil {
			return Message{}, fmt.Errorf("singer: line %d: %w", r.line, err)
		}
		msg.Line = r.line
		return msg, nil
	}
	if err := r.sc.Err(); err != nil {
		return Message{}, fmt.Errorf("singer: read line %d: %w", r.line+1, err)
	}
	return Message{}, io.EOF
}

// Messages iterates over the remaining messages. A decode error is yielded
// once and ends the iteration.
func (r *Reader) Messages() iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for {
			msg, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) decode(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	msg := Message{Type: env.Type, Stream: env.Stream}

	switch env.Type {
	case TypeSchema:
		if env.Stream == "" {
			return msg, errors.New("SCHEMA without stream")
		}
		if len(env.Schema) == 0 {
			return msg, fmt.Errorf("SCHEMA for stream %q has no schema", env.Stream)
		}
		sch, err := schema.Parse(env.Schema)
		if err != nil {
			return msg, fmt.Errorf("stream %q: %w", env.Stream, err)
		}
		r.schemas[env.Stream] = sch
		msg.Schema = sch
		msg.KeyProperties = env.KeyProperties

	case TypeRecord:
		if _, ok := r.schemas[env.Stream]; !ok {
			return msg, fmt.Errorf("RECORD for stream %q before its SCHEMA", env.Stream)
		}
		rec, err := decodeRecord(env.Record)
		if err != nil {
			return msg, err
		}
		msg.Record = rec

	case TypeState:
		msg.Value = env.Value

	case TypeActivateVersion:
		msg.Version = env.Version

	default:
		return msg, fmt.Errorf("unknown message type %q", env.Type)
	}
	return msg, nil
}

func decodeRecord(raw json.RawMessage) (flatten.Record, error) {
	if len(raw) == 0 {
		return nil, &batcherr.InvalidRecordError{Reason: "RECORD has no record"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &batcherr.InvalidRecordError{Reason: "malformed record", Err: err}
	}
	rec, ok := v.(map[string]any)
	if !ok {
		return nil, &batcherr.InvalidRecordError{Reason: fmt.Sprintf("record must be an object, got %T", v)}
	}
	return rec, nil
}

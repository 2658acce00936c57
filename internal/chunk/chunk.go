// Package chunk partitions a lazy sequence into fixed-size chunks.
//
// Chunks pulls from its input only while filling the current chunk and hands
// each full chunk to the consumer before pulling the next item, so at most
// one chunk is ever held in memory.
package chunk

import (
	"fmt"
	"iter"

	"csvbatch/internal/batcherr"
)

// Chunk is one slice of the input. Seq starts at 1.
type Chunk[T any] struct {
	Seq   int
	Items []T
}

// Chunks splits seq into chunks of size items; the last chunk may be shorter
// and an empty input yields no chunks. An upstream error is yielded once with
// a zero Chunk and ends the iteration.
//
// A size below 1 is rejected before seq is touched.
func Chunks[T any](seq iter.Seq2[T, error], size int) (iter.Seq2[Chunk[T], error], error) {
	if size <= 0 {
		return nil, &batcherr.ConfigurationError{
			Field:   "batch_size",
			Message: fmt.Sprintf("must be > 0, got %d", size),
		}
	}

	return func(yield func(Chunk[T], error) bool) {
		var (
			seqNo int
			items = make([]T, 0, size)
		)
		for item, err := range seq {
			if err != nil {
				yield(Chunk[T]{}, err)
				return
			}
			items = append(items, item)
			if len(items) < size {
				continue
			}
			seqNo++
			if !yield(Chunk[T]{Seq: seqNo, Items: items}, nil) {
				return
			}
			items = make([]T, 0, size)
		}
		if len(items) > 0 {
			seqNo++
			yield(Chunk[T]{Seq: seqNo, Items: items}, nil)
		}
	}, nil
}

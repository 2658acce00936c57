package batcherr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_MatchWithAs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		err     error
		message string
		match   func(error) bool
	}{
		{
			name:    "invalid record",
			err:     &InvalidRecordError{Path: "a.b", Reason: "non-string key"},
			message: "invalid record at a.b: non-string key",
			match: func(err error) bool {
				var target *InvalidRecordError
				return errors.As(err, &target)
			},
		},
		{
			name:    "encoding",
			err:     &EncodingError{Column: "price", Type: "float64", Err: errors.New("NaN")},
			message: `encode column "price" (float64): NaN`,
			match: func(err error) bool {
				var target *EncodingError
				return errors.As(err, &target)
			},
		},
		{
			name:    "configuration",
			err:     &ConfigurationError{Field: "batch.size", Message: "must be > 0"},
			message: "configuration: batch.size: must be > 0",
			match: func(err error) bool {
				var target *ConfigurationError
				return errors.As(err, &target)
			},
		},
		{
			name:    "storage",
			err:     &StorageError{Op: "open", Name: "x.csv.gz", Err: io.ErrClosedPipe},
			message: `storage open "x.csv.gz": io: read/write on closed pipe`,
			match: func(err error) bool {
				var target *StorageError
				return errors.As(err, &target)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("stream users: %w", tc.err)
			require.True(t, tc.match(wrapped))
			assert.Equal(t, tc.message, tc.err.Error())
		})
	}
}

func TestStorageError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	err := &StorageError{Op: "close", Name: "f", Err: io.ErrShortWrite}
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

// Package entityid derives deterministic entity ids from key tuples.
//
// The store never derives ids itself; callers that address entities by a tuple of keys
// (an owner address and a slot number, say) use FromKeys so that every component agrees
// on the id the indexer will report.
package entityid

import (
	"bytes"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// FromKeys msgpack-encodes keys as an array, with map keys sorted, and returns the
// xxhash64 of the encoding as a 0x-prefixed, zero-padded hex string.
func FromKeys(keys ...any) (string, error) {
	if len(keys) == 0 {
		return "", goerrors.New("at least one key is required", goerrors.CategoryValidation).
			WithTextCode("INVALID_KEYS")
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(keys); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "encode entity keys").
			WithTextCode("INVALID_KEYS")
	}
	return fmt.Sprintf("0x%016x", xxhash.Sum64(buf.Bytes())), nil
}

// MustFromKeys is FromKeys for keys known to encode, such as literals. It panics on error.
func MustFromKeys(keys ...any) string {
	id, err := FromKeys(keys...)
	if err != nil {
		panic(err)
	}
	return id
}

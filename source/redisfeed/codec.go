package redisfeed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-optimistic-cache/store"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts live updates to and from message payloads.
type Codec interface {
	Encode(update store.Entity) ([]byte, error)
	Decode(payload []byte) (store.Entity, error)
}

// wireUpdate is the payload layout shared by both codecs.
type wireUpdate struct {
	EntityID string       `json:"entityId" msgpack:"entityId"`
	Models   store.Models `json:"models" msgpack:"models"`
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Encode(update store.Entity) ([]byte, error) {
	return json.Marshal(wireUpdate{EntityID: update.ID, Models: update.Models})
}

func (JSONCodec) Decode(payload []byte) (store.Entity, error) {
	var w wireUpdate
	if err := json.Unmarshal(payload, &w); err != nil {
		return store.Entity{}, fmt.Errorf("decode json update: %w", err)
	}
	return store.Entity{ID: w.EntityID, Models: w.Models}, nil
}

// MsgpackCodec packs updates with msgpack. Decoded integers are int64 and floats are
// float64, whatever width the producer used.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(update store.Entity) ([]byte, error) {
	return msgpack.Marshal(wireUpdate{EntityID: update.ID, Models: update.Models})
}

func (MsgpackCodec) Decode(payload []byte) (store.Entity, error) {
	var w wireUpdate
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&w); err != nil {
		return store.Entity{}, fmt.Errorf("decode msgpack update: %w", err)
	}
	return store.Entity{ID: w.EntityID, Models: w.Models}, nil
}

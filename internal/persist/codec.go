package persist

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/kestrelmq/kestrel/internal/broker"
)

// Codec turns a broker state into a byte stream and back. Encode must
// round-trip exactly through Decode.
type Codec interface {
	Encode(w io.Writer, state broker.State) error
	Decode(r io.Reader) (broker.State, error)
}

// ZstdCodec encodes state as gob inside a zstd stream at the default
// compression level. Encoding streams straight into w in a single pass; no
// full in-memory copy of the encoded state is built.
type ZstdCodec struct{}

func (ZstdCodec) Encode(w io.Writer, state broker.State) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(state); err != nil {
		zw.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	// Close flushes the final frame; an error here means the stream on
	// disk is incomplete.
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush zstd stream: %w", err)
	}
	return nil
}

func (ZstdCodec) Decode(r io.Reader) (broker.State, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return broker.State{}, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	var state broker.State
	if err := gob.NewDecoder(zr).Decode(&state); err != nil {
		return broker.State{}, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

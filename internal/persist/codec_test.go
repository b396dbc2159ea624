package persist

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestZstdCodecRoundTrip(t *testing.T) {
	codec := ZstdCodec{}
	want := sampleState()

	var buf bytes.Buffer
	if err := codec.Encode(&buf, want); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := codec.Decode(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestZstdCodecRejectsGarbage(t *testing.T) {
	codec := ZstdCodec{}
	if _, err := codec.Decode(strings.NewReader("not a zstd stream")); err == nil {
		t.Error("expected decode of garbage to fail")
	}
}

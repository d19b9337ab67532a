package transport

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	type payload struct {
		A string
		B int
	}
	in := payload{A: "hello", B: 42}
	if err := writeFrame(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out payload
	if err := readFrame(bufio.NewReader(&buf), &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestFrameRejectsOversized(t *testing.T) {
	big := make([]byte, maxFrameSize+1)
	if err := writeFrame(&bytes.Buffer{}, big); err == nil {
		t.Fatalf("expected oversized frame to be rejected")
	}
}

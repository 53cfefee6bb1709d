package intenc

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	var buf []byte
	buf = AppendUint(buf, 0)
	buf = AppendUint(buf, 1<<40)
	buf = AppendInt(buf, -17)
	buf = AppendInt(buf, 1<<50)
	buf = AppendFloat(buf, 2.5)
	buf = AppendDouble(buf, -9.25)
	buf = AppendBool(buf, true)
	buf = AppendBool(buf, false)
	buf = AppendBytes(buf, []byte{9, 8, 7})
	buf = AppendString(buf, "hello")

	r := NewReader(buf)
	if got := r.Uint(); got != 0 {
		t.Fatalf("uint: got %d", got)
	}
	if got := r.Uint(); got != 1<<40 {
		t.Fatalf("uint: got %d", got)
	}
	if got := r.Int(); got != -17 {
		t.Fatalf("int: got %d", got)
	}
	if got := r.Int(); got != 1<<50 {
		t.Fatalf("int: got %d", got)
	}
	if got := r.Float(); got != 2.5 {
		t.Fatalf("float: got %v", got)
	}
	if got := r.Double(); got != -9.25 {
		t.Fatalf("double: got %v", got)
	}
	if !r.Bool() || r.Bool() {
		t.Fatalf("bool mismatch")
	}
	if got := r.Bytes(); !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Fatalf("bytes: got %v", got)
	}
	if got := r.String(); got != "hello" {
		t.Fatalf("string: got %q", got)
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected empty reader, %d left", r.Remaining())
	}
}

func TestTruncation(t *testing.T) {
	full := AppendString(nil, "payload")

	for cut := 0; cut < len(full); cut++ {
		r := NewReader(full[:cut])
		_ = r.String()
		if r.Err() == nil {
			t.Fatalf("cut at %d: expected error", cut)
		}
	}
}

func TestErrorSticks(t *testing.T) {
	r := NewReader(nil)
	r.Uint()
	if r.Err() != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
	// Further reads keep failing without panicking.
	r.Int()
	r.Bytes()
	if r.Err() != ErrTruncated {
		t.Fatalf("error not sticky: %v", r.Err())
	}
}

func TestBytesLengthLie(t *testing.T) {
	// Length prefix claims more bytes than the buffer holds.
	buf := AppendUint(nil, 1000)
	buf = append(buf, 1, 2, 3)

	r := NewReader(buf)
	if got := r.Bytes(); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if r.Err() != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}

package export

import (
	"bytes"
	"testing"
)

func TestEncodeWriter_Windows1252(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := encodeWriter(&buf, Windows1252)
	if err != nil {
		t.Fatalf("encodeWriter: %v", err)
	}
	if _, err := w.Write([]byte("µm²")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Windows-1252 single-byte encodings of µ and ².
	want := []byte{0xB5, 0x6D, 0xB2}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded = % x, want % x", buf.Bytes(), want)
	}
}

func TestEncodeWriter_UTF8IsPassThrough(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := encodeWriter(&buf, UTF8)
	if err != nil {
		t.Fatalf("encodeWriter: %v", err)
	}
	if _, err := w.Write([]byte("plain")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.String() != "plain" {
		t.Fatalf("encoded = %q", buf.String())
	}
}

package gateway

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"strings"
	"testing"
)

func gzipBase64(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return []byte(base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func TestSniffDecompress_GzipWrapped(t *testing.T) {
	const body = "<html><head></head><body>hello compressed world</body></html>"
	out, err := sniffDecompress(gzipBase64(t, body))
	if err != nil {
		t.Fatalf("sniffDecompress: %v", err)
	}
	if string(out) != body {
		t.Errorf("out = %q, want original body", out)
	}
}

func TestSniffDecompress_PlainPassthrough(t *testing.T) {
	inputs := [][]byte{
		[]byte("<html><body>markup is never base64-shaped</body></html>"),
		[]byte("short"),
		{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a},
	}
	for _, in := range inputs {
		out, err := sniffDecompress(in)
		if err != nil {
			t.Fatalf("sniffDecompress(%q): %v", in, err)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("sniffDecompress(%q) = %q, want unchanged", in, out)
		}
	}
}

func TestSniffDecompress_Base64WithoutGzip(t *testing.T) {
	// Base64-shaped and valid, but the payload has no gzip magic: the
	// decoded bytes are used as-is.
	payload := strings.Repeat("abc", 30)
	in := []byte(base64.StdEncoding.EncodeToString([]byte(payload)))
	out, err := sniffDecompress(in)
	if err != nil {
		t.Fatalf("sniffDecompress: %v", err)
	}
	if string(out) != payload {
		t.Errorf("out = %q, want decoded payload", out)
	}
}

func TestSniffDecompress_Base64ShapedButInvalid(t *testing.T) {
	// Passes the alphabet check but is not decodable (bad padding
	// placement). Served unchanged rather than erroring.
	in := []byte(strings.Repeat("A", 61) + "=AA")
	out, err := sniffDecompress(in)
	if err != nil {
		t.Fatalf("sniffDecompress: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("out = %q, want unchanged", out)
	}
}

func TestSniffDecompress_CorruptGzip(t *testing.T) {
	corrupt := append([]byte{0x1f, 0x8b}, bytes.Repeat([]byte{0xff}, 64)...)
	in := []byte(base64.StdEncoding.EncodeToString(corrupt))
	if _, err := sniffDecompress(in); err == nil {
		t.Error("expected error for corrupt gzip stream")
	}
}

package gateway

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/metrics"
	"github.com/matildepark/wisp-explorer/internal/store"
)

// Blobs shorter than this are never sniffed as base64; short texts like
// "hello" match the alphabet by accident.
const base64SniffMin = 50

var base64Re = regexp.MustCompile(`^[A-Za-z0-9+/=\s]+$`)

// fetchBlob returns the blob's bytes and whether they came from the
// cache. On a miss the bytes are fetched from the hosting endpoint,
// decompressed if they sniff as base64-wrapped gzip, and cached.
// Oversized blobs are served but not admitted.
func (s *Server) fetchBlob(ctx context.Context, endpoint, did, cid string) ([]byte, bool, error) {
	if data, ok := s.session.Store().GetBlob(cid); ok {
		metrics.RecordCacheLookup(true)
		return data, true, nil
	}
	metrics.RecordCacheLookup(false)

	raw, err := s.client.GetBlob(ctx, endpoint, did, cid)
	if err != nil {
		return nil, false, fmt.Errorf("fetch blob %s: %w", cid, err)
	}
	metrics.RecordBlobFetch(len(raw))

	data, err := sniffDecompress(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decompress blob %s: %w", cid, err)
	}

	if err := s.session.Store().PutBlob(cid, data); err != nil {
		if !errors.Is(err, store.ErrBlobTooLarge) {
			logging.Warn("blob not cached", zap.String("cid", cid), zap.Error(err))
		}
	}
	return data, false, nil
}

// sniffDecompress undoes the base64+gzip wrapping some publishing tools
// apply to blobs. A blob is unwrapped only when it is long enough,
// consists solely of base64 alphabet characters, and decodes to bytes
// starting with the gzip magic. Anything else passes through unchanged.
// A plain-text blob that happens to be base64-shaped will be decoded;
// that is an accepted cost of sniffing without metadata.
func sniffDecompress(data []byte) ([]byte, error) {
	s := strings.TrimSpace(string(data))
	if len(s) <= base64SniffMin || !base64Re.MatchString(s) {
		return data, nil
	}

	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)

	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		// Base64-shaped but not valid base64: treat as plain content.
		return data, nil
	}
	if len(decoded) < 2 || decoded[0] != 0x1f || decoded[1] != 0x8b {
		return decoded, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return out, nil
}

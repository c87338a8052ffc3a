// Package manifest retrieves and decodes published-site records from a
// hosting endpoint: site records and directory fragments, each in one
// of two wire encodings, merged into a single virtual-filesystem tree.
package manifest

import (
	"errors"
	"fmt"
	"time"

	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

// Manifest is the merged tree describing one published site, rebuilt
// wholesale on every fetch.
type Manifest struct {
	Root      *vfs.Directory `json:"root"`
	SiteName  string         `json:"siteName"`
	FileCount int            `json:"fileCount"`
	CreatedAt time.Time      `json:"createdAt"`
}

// SiteInfo is the active serving context: where the site lives and who
// publishes it. Required to build cache keys and the injected base path.
type SiteInfo struct {
	Endpoint string `json:"endpoint"`
	DID      string `json:"did"`
	Handle   string `json:"handle,omitempty"`
	SiteName string `json:"siteName"`
}

// SiteRef summarizes one site record in a repository listing.
type SiteRef struct {
	RKey      string    `json:"rkey"`
	Name      string    `json:"name"`
	FileCount int       `json:"fileCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNoSite signals that the repository has no record for the requested
// site. Distinct from network failure.
var ErrNoSite = errors.New("site not published")

// ParseError is a malformed manifest record.
type ParseError struct {
	Record string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("parse record %s: %s", e.Record, e.Msg)
	}
	return "parse record: " + e.Msg
}

// AsParseError checks if an error is a ParseError.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

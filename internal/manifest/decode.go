package manifest

import (
	"encoding/json"

	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

// Wire encodings: a directory record value is either the flat form
// {files, dirs} or the entry-array form
// {type: "directory", entries: [{name, node}]}. Both are converted,
// once at parse time, to the canonical vfs.Directory.

// blobShape covers the two recognized blob-reference shapes: the bare
// string link {"link": cid} and the structured content-identifier
// object {"$type": "blob", "ref": {"$link": cid}, mimeType, size}.
type blobShape struct {
	Link string `json:"link"`
	Ref  *struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

func (b blobShape) cid() string {
	if b.Link != "" {
		return b.Link
	}
	if b.Ref != nil {
		return b.Ref.Link
	}
	return ""
}

// fileWire is a file node in either encoding. The blob reference may
// sit under "ref" or "blob", or the node may itself be a blob object.
type fileWire struct {
	Ref      json.RawMessage `json:"ref"`
	Blob     json.RawMessage `json:"blob"`
	MimeType string          `json:"mimeType"`
	Size     int64           `json:"size"`
}

// decodeFileEntry resolves a file node to a canonical entry, picking
// whichever recognized blob-reference shape is present.
func decodeFileEntry(raw json.RawMessage, name string) (vfs.FileEntry, error) {
	var fw fileWire
	if err := json.Unmarshal(raw, &fw); err != nil {
		return vfs.FileEntry{}, &ParseError{Record: name, Msg: "malformed file node: " + err.Error()}
	}

	entry := vfs.FileEntry{MimeType: fw.MimeType, Size: fw.Size}

	for _, candidate := range []json.RawMessage{fw.Ref, fw.Blob, raw} {
		if len(candidate) == 0 {
			continue
		}
		var shape blobShape
		if json.Unmarshal(candidate, &shape) != nil {
			continue
		}
		if cid := shape.cid(); cid != "" {
			entry.CID = cid
			if entry.MimeType == "" {
				entry.MimeType = shape.MimeType
			}
			if entry.Size == 0 {
				entry.Size = shape.Size
			}
			return entry, nil
		}
	}

	return vfs.FileEntry{}, &ParseError{Record: name, Msg: "file node carries no recognized blob reference"}
}

// entryNode is one node of the entry-array encoding.
type entryNode struct {
	Type    string `json:"type"`
	Entries []struct {
		Name string          `json:"name"`
		Node json.RawMessage `json:"node"`
	} `json:"entries"`
}

// DecodeDirectory converts a directory record value in either wire
// encoding to the canonical in-memory tree. Pure; no network access.
func DecodeDirectory(raw json.RawMessage) (*vfs.Directory, error) {
	if len(raw) == 0 {
		return &vfs.Directory{}, nil
	}

	var probe struct {
		Type    string          `json:"type"`
		Entries json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &ParseError{Msg: "malformed directory: " + err.Error()}
	}
	if probe.Type == "directory" || len(probe.Entries) > 0 {
		return decodeEntryDir(raw)
	}
	return decodeFlatDir(raw)
}

func decodeFlatDir(raw json.RawMessage) (*vfs.Directory, error) {
	var flat struct {
		Files map[string]json.RawMessage `json:"files"`
		Dirs  map[string]json.RawMessage `json:"dirs"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, &ParseError{Msg: "malformed flat directory: " + err.Error()}
	}

	dir := &vfs.Directory{}
	for name, fraw := range flat.Files {
		if name == "" {
			return nil, &ParseError{Msg: "file entry with empty name"}
		}
		entry, err := decodeFileEntry(fraw, name)
		if err != nil {
			return nil, err
		}
		if dir.Files == nil {
			dir.Files = make(map[string]vfs.FileEntry)
		}
		dir.Files[name] = entry
	}
	for name, draw := range flat.Dirs {
		if name == "" {
			return nil, &ParseError{Msg: "directory entry with empty name"}
		}
		sub, err := DecodeDirectory(draw)
		if err != nil {
			return nil, err
		}
		if dir.Dirs == nil {
			dir.Dirs = make(map[string]*vfs.Directory)
		}
		dir.Dirs[name] = sub
	}
	return dir, nil
}

func decodeEntryDir(raw json.RawMessage) (*vfs.Directory, error) {
	var node entryNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, &ParseError{Msg: "malformed directory node: " + err.Error()}
	}
	if node.Type != "" && node.Type != "directory" {
		return nil, &ParseError{Msg: "unrecognized node type " + node.Type}
	}

	dir := &vfs.Directory{}
	for _, e := range node.Entries {
		if e.Name == "" {
			return nil, &ParseError{Msg: "entry with missing name"}
		}

		var child struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(e.Node, &child); err != nil {
			return nil, &ParseError{Record: e.Name, Msg: "malformed node: " + err.Error()}
		}

		switch child.Type {
		case "file":
			entry, err := decodeFileEntry(e.Node, e.Name)
			if err != nil {
				return nil, err
			}
			if dir.Files == nil {
				dir.Files = make(map[string]vfs.FileEntry)
			}
			dir.Files[e.Name] = entry
		case "directory":
			sub, err := decodeEntryDir(e.Node)
			if err != nil {
				return nil, err
			}
			if dir.Dirs == nil {
				dir.Dirs = make(map[string]*vfs.Directory)
			}
			dir.Dirs[e.Name] = sub
		default:
			return nil, &ParseError{Record: e.Name, Msg: "unrecognized node type " + child.Type}
		}
	}
	return dir, nil
}

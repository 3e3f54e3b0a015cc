package golstore

import (
	"fmt"
	"os"
)

// Archive is a GOL file opened for inspection: its header, every tile's
// directory entry, and the manifest sections (§6 "Output"). It holds the
// whole file in memory, which is fine for the commands that use it
// (info/check/get) since none of them are the read-side query/traversal
// path §1 excludes — that would mmap and seek selectively instead of
// loading everything up front.
type Archive struct {
	Header      Header
	Entries     []Entry
	GST         []string
	IndexedKeys []string
	Settings    map[string]string

	data []byte
}

// Open reads path's GOL archive into memory and parses its header and
// every section but the tile data itself, which TileData reads on demand.
func Open(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("golstore: opening %s: %w", path, err)
	}

	header, err := DeserializeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("golstore: %s: %w", path, err)
	}

	rootDir := data[header.DirectoryOffset : header.DirectoryOffset+header.DirectoryLength]
	rootEntries, err := DeserializeDirectory(rootDir)
	if err != nil {
		return nil, fmt.Errorf("golstore: %s: reading directory: %w", path, err)
	}

	entries := rootEntries
	if header.LeafDirLength > 0 {
		leafSection := data[header.LeafDirOffset : header.LeafDirOffset+header.LeafDirLength]
		entries = nil
		for _, ptr := range rootEntries {
			leafData := leafSection[ptr.Offset : ptr.Offset+uint64(ptr.Length)]
			leafEntries, err := DeserializeDirectory(leafData)
			if err != nil {
				return nil, fmt.Errorf("golstore: %s: reading leaf directory: %w", path, err)
			}
			entries = append(entries, leafEntries...)
		}
	}

	strSection := data[header.StringsOffset : header.StringsOffset+header.StringsLength]
	gst, indexedKeys, err := DeserializeStrings(strSection)
	if err != nil {
		return nil, fmt.Errorf("golstore: %s: reading string table: %w", path, err)
	}

	settingsSection := data[header.SettingsOffset : header.SettingsOffset+header.SettingsLength]
	settings, err := DeserializeSettings(settingsSection)
	if err != nil {
		return nil, fmt.Errorf("golstore: %s: reading settings: %w", path, err)
	}

	return &Archive{
		Header:      header,
		Entries:     entries,
		GST:         gst,
		IndexedKeys: indexedKeys,
		Settings:    settings,
		data:        data,
	}, nil
}

// TileData returns the raw (still-compressed) bytes one directory entry
// points at.
func (a *Archive) TileData(e Entry) []byte {
	start := a.Header.TileDataOffset + e.Offset
	return a.data[start : start+uint64(e.Length)]
}

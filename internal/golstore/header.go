package golstore

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// HeaderSize is the fixed size, in bytes, of the archive header.
const HeaderSize = 64

// golMagic identifies a GOL archive on disk, mirroring the teacher's
// "PMTiles"+version magic but for this format.
const golMagic = "GOLBUILD"

const formatVersion = 1

// Header is the fixed-size archive header: format identity, the build's
// GUID/revision (§6 "Output"), and offsets/lengths for every section that
// follows it.
type Header struct {
	GUID     uuid.UUID
	Revision uint32

	TileCount uint32
	MinZoom   uint8
	MaxZoom   uint8

	DirectoryOffset uint64
	DirectoryLength uint64
	LeafDirOffset   uint64
	LeafDirLength   uint64
	StringsOffset   uint64
	StringsLength   uint64
	SettingsOffset  uint64
	SettingsLength  uint64
	TileDataOffset  uint64
	TileDataLength  uint64
}

// Serialize writes the fixed header.
func (h *Header) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], golMagic)
	binary.LittleEndian.PutUint32(buf[8:12], formatVersion)

	guidBytes, _ := h.GUID.MarshalBinary()
	copy(buf[12:28], guidBytes)
	binary.LittleEndian.PutUint32(buf[28:32], h.Revision)

	binary.LittleEndian.PutUint32(buf[32:36], h.TileCount)
	buf[36] = h.MinZoom
	buf[37] = h.MaxZoom

	return buf
}

// SerializeSections appends the variable section table after the fixed
// header. It is kept separate from Serialize because HeaderSize must stay
// constant regardless of how many sections a given archive has.
func (h *Header) SerializeSections() []byte {
	buf := make([]byte, 8*10)
	binary.LittleEndian.PutUint64(buf[0:8], h.DirectoryOffset)
	binary.LittleEndian.PutUint64(buf[8:16], h.DirectoryLength)
	binary.LittleEndian.PutUint64(buf[16:24], h.LeafDirOffset)
	binary.LittleEndian.PutUint64(buf[24:32], h.LeafDirLength)
	binary.LittleEndian.PutUint64(buf[32:40], h.StringsOffset)
	binary.LittleEndian.PutUint64(buf[40:48], h.StringsLength)
	binary.LittleEndian.PutUint64(buf[48:56], h.SettingsOffset)
	binary.LittleEndian.PutUint64(buf[56:64], h.SettingsLength)
	binary.LittleEndian.PutUint64(buf[64:72], h.TileDataOffset)
	binary.LittleEndian.PutUint64(buf[72:80], h.TileDataLength)
	return buf
}

// DeserializeHeader parses a fixed header plus its section table.
func DeserializeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize+80 {
		return Header{}, fmt.Errorf("golstore: header too short: %d bytes", len(buf))
	}
	if string(buf[0:8]) != golMagic {
		return Header{}, fmt.Errorf("golstore: invalid magic bytes: %q", buf[0:8])
	}
	if v := binary.LittleEndian.Uint32(buf[8:12]); v != formatVersion {
		return Header{}, fmt.Errorf("golstore: unsupported format version %d", v)
	}

	var guid uuid.UUID
	copy(guid[:], buf[12:28])

	h := Header{
		GUID:      guid,
		Revision:  binary.LittleEndian.Uint32(buf[28:32]),
		TileCount: binary.LittleEndian.Uint32(buf[32:36]),
		MinZoom:   buf[36],
		MaxZoom:   buf[37],
	}

	s := buf[HeaderSize:]
	h.DirectoryOffset = binary.LittleEndian.Uint64(s[0:8])
	h.DirectoryLength = binary.LittleEndian.Uint64(s[8:16])
	h.LeafDirOffset = binary.LittleEndian.Uint64(s[16:24])
	h.LeafDirLength = binary.LittleEndian.Uint64(s[24:32])
	h.StringsOffset = binary.LittleEndian.Uint64(s[32:40])
	h.StringsLength = binary.LittleEndian.Uint64(s[40:48])
	h.SettingsOffset = binary.LittleEndian.Uint64(s[48:56])
	h.SettingsLength = binary.LittleEndian.Uint64(s[56:64])
	h.TileDataOffset = binary.LittleEndian.Uint64(s[64:72])
	h.TileDataLength = binary.LittleEndian.Uint64(s[72:80])

	return h, nil
}

// Manifest is everything the compiler hands to the blob store besides the
// tile blobs themselves, per §6 "Output": the global string table, the
// indexed-keys table, build settings, and the guid/revision pair.
type Manifest struct {
	GUID        uuid.UUID
	Revision    uint32
	MinZoom     int
	MaxZoom     int
	GST         []string
	IndexedKeys []string
	Settings    map[string]string
}

package golstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// serializeStrings writes the global string table followed by the
// indexed-keys list, each as a varint count then length-prefixed UTF-8
// strings. The two lists share one section because both are read once, at
// archive-open time, by the same caller (§6 "Output").
func serializeStrings(gst, indexedKeys []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeStringList(&buf, gst); err != nil {
		return nil, fmt.Errorf("golstore: serializing GST: %w", err)
	}
	if err := writeStringList(&buf, indexedKeys); err != nil {
		return nil, fmt.Errorf("golstore: serializing indexed keys: %w", err)
	}
	return buf.Bytes(), nil
}

func writeStringList(buf *bytes.Buffer, list []string) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(list)))
	buf.Write(lenBuf[:n])
	for _, s := range list {
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		buf.Write(lenBuf[:n])
		buf.WriteString(s)
	}
	return nil
}

// DeserializeStrings is the inverse of serializeStrings.
func DeserializeStrings(data []byte) (gst, indexedKeys []string, err error) {
	r := bytes.NewReader(data)
	gst, err = readStringList(r)
	if err != nil {
		return nil, nil, fmt.Errorf("golstore: reading GST: %w", err)
	}
	indexedKeys, err = readStringList(r)
	if err != nil {
		return nil, nil, fmt.Errorf("golstore: reading indexed keys: %w", err)
	}
	return gst, indexedKeys, nil
}

func readStringList(r *bytes.Reader) ([]string, error) {
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	list := make([]string, count)
	for i := range list {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		s := make([]byte, n)
		if _, err := r.Read(s); err != nil {
			return nil, err
		}
		list[i] = string(s)
	}
	return list, nil
}

// serializeSettings writes build settings as a sorted sequence of
// length-prefixed key/value string pairs, kept human-diffable (sorted by
// key) since this section exists mainly for `gol info` to read back.
func serializeSettings(settings map[string]string) []byte {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(keys)))
	buf.Write(lenBuf[:n])
	for _, k := range keys {
		writeLP(&buf, k, lenBuf[:])
		writeLP(&buf, settings[k], lenBuf[:])
	}
	return buf.Bytes()
}

func writeLP(buf *bytes.Buffer, s string, scratch []byte) {
	n := binary.PutUvarint(scratch, uint64(len(s)))
	buf.Write(scratch[:n])
	buf.WriteString(s)
}

// DeserializeSettings is the inverse of serializeSettings.
func DeserializeSettings(data []byte) (map[string]string, error) {
	r := bytes.NewReader(data)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, count)
	for i := uint64(0); i < count; i++ {
		k, err := readLP(r)
		if err != nil {
			return nil, err
		}
		v, err := readLP(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func readLP(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

package storage

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// encode produces a deterministic binary form of data: a uint32 LE record
// count followed by (keylen uint32 LE, key, vallen uint32 LE, value) records,
// sorted by key bytes ascending. Sorting is required so that two calls
// against logically-equal maps always produce byte-identical output — the
// dirty-check fence in Sync compares these encodings, not the maps
// themselves.
func encode(data map[string][]byte) []byte {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	size := 4
	for _, k := range keys {
		size += 4 + len(k) + 4 + len(data[k])
	}

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(keys)))
	off += 4
	for _, k := range keys {
		v := data[k]
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(k)))
		off += 4
		off += copy(buf[off:], k)
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(v)))
		off += 4
		off += copy(buf[off:], v)
	}
	return buf
}

// decode parses the encoding produced by encode.
func decode(buf []byte) (map[string][]byte, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("storage: encoding truncated: %d bytes", len(buf))
	}
	count := binary.LittleEndian.Uint32(buf)
	off := 4

	data := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		klen, err := readUint32(buf, &off)
		if err != nil {
			return nil, err
		}
		key, err := readBytes(buf, &off, klen)
		if err != nil {
			return nil, err
		}
		vlen, err := readUint32(buf, &off)
		if err != nil {
			return nil, err
		}
		val, err := readBytes(buf, &off, vlen)
		if err != nil {
			return nil, err
		}
		data[string(key)] = val
	}
	if off != len(buf) {
		return nil, fmt.Errorf("storage: %d trailing bytes after decoding %d records", len(buf)-off, count)
	}
	return data, nil
}

func readUint32(buf []byte, off *int) (uint32, error) {
	if *off+4 > len(buf) {
		return 0, fmt.Errorf("storage: encoding truncated reading length at offset %d", *off)
	}
	v := binary.LittleEndian.Uint32(buf[*off:])
	*off += 4
	return v, nil
}

func readBytes(buf []byte, off *int, n uint32) ([]byte, error) {
	end := *off + int(n)
	if end > len(buf) || end < *off {
		return nil, fmt.Errorf("storage: encoding truncated reading %d bytes at offset %d", n, *off)
	}
	out := make([]byte, n)
	copy(out, buf[*off:end])
	*off = end
	return out, nil
}

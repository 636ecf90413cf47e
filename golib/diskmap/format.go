package diskmap

import (
	"bytes"
	"encoding/binary"
	"io"
)

// On disk a diskmap is a sequence of entries sorted by key, each written as
// < varint(sizeof(entry)), varint(sizeof(key)), key, value >, terminated by a sentinel
// entry, followed by the gob encoded indexFooter and the big endian int64 offset of that footer.

const (
	lastEntrySentinel = "_diskmap_end"
	formatVersion     = 1
	// DefaultBlockEntries is how many entries share one index slot. Higher means a smaller
	// index in memory but more entries scanned per Get.
	DefaultBlockEntries = 5
)

type indexFooter struct {
	Version      int
	Index        []indexEntry
	BlockEntries int
	Len          int
}

type indexEntry struct {
	Key    string
	Offset int
}

func encodeKeyValue(w io.Writer, key string, value []byte, keyBuf []byte, entryBuf *bytes.Buffer) (int, error) {
	var written int
	entryBuf.Reset()
	n := binary.PutVarint(keyBuf, int64(len(key)))
	entryBuf.Write(keyBuf[:n])
	entryBuf.WriteString(key)
	entryBuf.Write(value)

	n = binary.PutVarint(keyBuf, int64(entryBuf.Len()))
	nn, err := w.Write(keyBuf[:n])
	if err != nil {
		return -1, err
	}
	written += nn
	nn, err = w.Write(entryBuf.Bytes())
	if err != nil {
		return -1, err
	}
	written += nn

	return written, nil
}

func entryKeyValue(entry []byte) (string, []byte) {
	keySize, n := binary.Varint(entry)
	return string(entry[n : int64(n)+keySize]), entry[int64(n)+keySize:]
}

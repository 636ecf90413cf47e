package diskmap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	// ErrNotFound is returned when the key-value could not be found.
	ErrNotFound = errors.New("key not found")
)

// Getter provides a read-only interface into the diskmap.
type Getter interface {
	Get(key string) ([]byte, error)
	Len() int
}

// Map is a read-only view of a diskmap file. Only the sparse index is held in memory.
type Map struct {
	path   string
	footer indexFooter
}

// NewMap creates a new Map object using the diskmap file provided.
func NewMap(path string) (*Map, error) {
	m := &Map{path: path}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	return m.footer.Len
}

// Path returns the location of the diskmap file; the same value provided to NewMap
func (m *Map) Path() string {
	return m.path
}

// IterateSlowly scans over the entire diskmap and emits key/value pairs in key order.
// Values are only valid until emit returns.
func (m *Map) IterateSlowly(emit func(key string, val []byte) error) error {
	dataf, err := os.Open(m.path)
	if err != nil {
		return err
	}
	defer dataf.Close()

	// binary.ReadVarint needs an io.ByteReader
	bufr := bufio.NewReader(dataf)

	var numKeys int
	var entryBuf bytes.Buffer
	for numKeys < m.footer.Len {
		entrySize, err := binary.ReadVarint(bufr)
		switch err {
		case nil:
		case io.EOF:
			return nil
		default:
			return err
		}

		entryBuf.Reset()
		if _, err = io.CopyN(&entryBuf, bufr, entrySize); err != nil {
			return err
		}

		numKeys++
		key, val := entryKeyValue(entryBuf.Bytes())
		if err := emit(key, val); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns all keys in the diskmap by scanning the whole file.
func (m *Map) Keys() ([]string, error) {
	var keys []string
	err := m.IterateSlowly(func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Get returns a []byte slice associated with the key, or an error
func (m *Map) Get(key string) ([]byte, error) {
	offset, ok := m.offsetForKey(key)
	if !ok {
		return nil, ErrNotFound
	}

	dataf, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	defer dataf.Close()

	if _, err = dataf.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	bufr := bufio.NewReader(dataf)

	var entryBuf bytes.Buffer
	for i := 0; i < m.footer.BlockEntries; i++ {
		entrySize, err := binary.ReadVarint(bufr)
		if err == io.EOF {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		entryBuf.Reset()
		if _, err := io.CopyN(&entryBuf, bufr, entrySize); err != nil {
			return nil, err
		}

		curKey, val := entryKeyValue(entryBuf.Bytes())
		if curKey == lastEntrySentinel || curKey > key {
			return nil, ErrNotFound
		}
		if curKey == key {
			// copy out of entryBuf so the caller does not pin its backing array
			cv := make([]byte, len(val))
			copy(cv, val)
			return cv, nil
		}
	}

	return nil, ErrNotFound
}

// offsetForKey finds the last index slot whose key is <= key
func (m *Map) offsetForKey(key string) (int, bool) {
	idx := m.footer.Index
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Key > key })
	if i == 0 {
		return -1, false
	}
	return idx[i-1].Offset, true
}

func (m *Map) loadIndex() error {
	indexf, err := os.Open(m.path)
	if err != nil {
		return err
	}
	defer indexf.Close()

	// the last 8 bytes hold the offset where the footer starts
	if _, err = indexf.Seek(int64(-8), io.SeekEnd); err != nil {
		return fmt.Errorf("diskmap %s is truncated: %v", m.path, err)
	}

	var footerOffset int64
	err = binary.Read(indexf, binary.BigEndian, &footerOffset)
	if err != nil && err != io.EOF {
		return err
	}

	if _, err = indexf.Seek(footerOffset, io.SeekStart); err != nil {
		return err
	}

	if err := gob.NewDecoder(indexf).Decode(&m.footer); err != nil {
		return fmt.Errorf("error decoding footer: %v", err)
	}
	if m.footer.Version != formatVersion {
		return fmt.Errorf("diskmap %s has unsupported version %d", m.path, m.footer.Version)
	}
	if m.footer.BlockEntries < 1 {
		return fmt.Errorf("diskmap %s has invalid block size %d", m.path, m.footer.BlockEntries)
	}

	return nil
}

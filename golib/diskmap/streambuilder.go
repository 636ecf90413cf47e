package diskmap

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// StreamBuilder builds and serializes a diskmap file directly to a io.Writer. Keys
// must be added in sorted order.
type StreamBuilder struct {
	writer   io.Writer
	offset   int
	keyBuf   []byte
	entryBuf bytes.Buffer
	lastKey  string
	closed   bool
	footer   indexFooter
}

// NewStreamBuilder returns a new StreamBuilder object.
func NewStreamBuilder(w io.Writer) *StreamBuilder {
	return NewStreamBuilderWithBlock(w, DefaultBlockEntries)
}

// NewStreamBuilderWithBlock is NewStreamBuilder with a custom number of entries per index slot.
func NewStreamBuilderWithBlock(w io.Writer, blockEntries int) *StreamBuilder {
	if blockEntries < 1 {
		blockEntries = 1
	}
	return &StreamBuilder{
		writer: w,
		keyBuf: make([]byte, binary.MaxVarintLen64),
		footer: indexFooter{
			Version:      formatVersion,
			BlockEntries: blockEntries,
		},
	}
}

// Add adds the provided key/value to the builder. Keys must be strictly increasing.
func (m *StreamBuilder) Add(key string, value []byte) error {
	if m.closed {
		return fmt.Errorf("diskmap: StreamBuilder closed")
	}
	if m.footer.Len > 0 && key <= m.lastKey {
		return fmt.Errorf("diskmap: StreamBuilder.Add keys must be sorted and unique, got %s after %s", key, m.lastKey)
	}
	if key == lastEntrySentinel {
		return fmt.Errorf("diskmap: %s is reserved", key)
	}

	m.lastKey = key

	if m.footer.Len%m.footer.BlockEntries == 0 {
		m.footer.Index = append(m.footer.Index, indexEntry{key, m.offset})
	}

	n, err := encodeKeyValue(m.writer, key, value, m.keyBuf, &m.entryBuf)
	if err != nil {
		return err
	}

	m.offset += n
	m.footer.Len++

	return nil
}

// Len is the number of entries added so far
func (m *StreamBuilder) Len() int {
	return m.footer.Len
}

// Size is the number of entry bytes written so far, excluding the footer
func (m *StreamBuilder) Size() int64 {
	return int64(m.offset)
}

// Close finishes writing the diskmap to the provided io.Writer; it does not close the writer.
func (m *StreamBuilder) Close() error {
	if m.closed {
		return nil
	}

	n, err := encodeKeyValue(m.writer, lastEntrySentinel, []byte(lastEntrySentinel), m.keyBuf, &m.entryBuf)
	if err != nil {
		return err
	}

	m.offset += n

	if err := gob.NewEncoder(m.writer).Encode(&m.footer); err != nil {
		return err
	}

	if err := binary.Write(m.writer, binary.BigEndian, int64(m.offset)); err != nil {
		return err
	}

	m.closed = true
	return nil
}

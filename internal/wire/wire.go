// Package wire implements the Binary Record Builder of spec.md §4.10: a
// single-segment, append-only message builder over a caller-provided fixed
// buffer, with 8-byte aligned offsets and Cap'n-Proto-flavoured pointer
// words (a signed word offset relative to the pointer's own position + 1,
// packed alongside an element/byte count). No pack dependency provides a
// Cap'n Proto codegen toolchain (see DESIGN.md), so this hand-rolls the
// exact byte-exact schema the spec calls for.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const wordSize = 8

// Builder constructs one single-segment message into a fixed-capacity
// buffer. The buffer is append-only: the root struct occupies the first
// (dataWords+ptrWords)*8 bytes, and every SetText/SetTextList/
// AllocCompositeList call appends further words after whatever has been
// appended so far.
type Builder struct {
	buf            []byte
	used           int // bytes used so far, always word-aligned
	dataWords      int
	ptrWords       int
	rootDataOffset int
	rootPtrOffset  int
}

// Init zeroes buf and reserves the root struct's data and pointer sections.
// buf must be large enough for the root struct plus every field the caller
// intends to set; Init panics if it is not.
func Init(buf []byte, dataWords, ptrWords int) *Builder {
	rootSize := (dataWords + ptrWords) * wordSize
	if len(buf) < rootSize {
		panic(fmt.Sprintf("wire: buffer of %d bytes too small for root struct of %d words", len(buf), dataWords+ptrWords))
	}
	for i := range buf {
		buf[i] = 0
	}
	return &Builder{
		buf:            buf,
		used:           rootSize,
		dataWords:      dataWords,
		ptrWords:       ptrWords,
		rootDataOffset: 0,
		rootPtrOffset:  dataWords * wordSize,
	}
}

func (b *Builder) reserve(n int) (offset int, err error) {
	// round n up to a word boundary
	padded := (n + wordSize - 1) / wordSize * wordSize
	if b.used+padded > len(b.buf) {
		return 0, fmt.Errorf("wire: buffer exhausted: need %d more bytes, have %d", padded, len(b.buf)-b.used)
	}
	offset = b.used
	b.used += padded
	return offset, nil
}

// --- data-section setters, by byte offset within the data section ---

func (b *Builder) checkDataOffset(byteOffset, width int) {
	if byteOffset < 0 || byteOffset+width > b.dataWords*wordSize {
		panic(fmt.Sprintf("wire: data offset %d+%d out of range for %d data words", byteOffset, width, b.dataWords))
	}
}

func (b *Builder) SetUint64(byteOffset int, v uint64) {
	b.checkDataOffset(byteOffset, 8)
	binary.LittleEndian.PutUint64(b.buf[b.rootDataOffset+byteOffset:], v)
}

func (b *Builder) SetInt64(byteOffset int, v int64) { b.SetUint64(byteOffset, uint64(v)) }

func (b *Builder) SetUint32(byteOffset int, v uint32) {
	b.checkDataOffset(byteOffset, 4)
	binary.LittleEndian.PutUint32(b.buf[b.rootDataOffset+byteOffset:], v)
}

func (b *Builder) SetInt32(byteOffset int, v int32) { b.SetUint32(byteOffset, uint32(v)) }

func (b *Builder) SetFloat64(byteOffset int, v float64) {
	b.SetUint64(byteOffset, float64bits(v))
}

func (b *Builder) SetByte(byteOffset int, v byte) {
	b.checkDataOffset(byteOffset, 1)
	b.buf[b.rootDataOffset+byteOffset] = v
}

// --- pointer-section setters ---

func (b *Builder) checkPtrIndex(ptrIndex int) {
	if ptrIndex < 0 || ptrIndex >= b.ptrWords {
		panic(fmt.Sprintf("wire: pointer index %d out of range for %d pointer words", ptrIndex, b.ptrWords))
	}
}

// writePointer encodes a relative word offset and a count into the pointer
// word at ptrWordByteOffset. The offset is relative to the word immediately
// following the pointer word itself (pointer's own position + 1), matching
// spec.md §4.10's offset discipline.
func (b *Builder) writePointer(ptrWordByteOffset, targetByteOffset, count int) {
	targetWord := targetByteOffset / wordSize
	ptrWord := ptrWordByteOffset / wordSize
	relWords := int32(targetWord - (ptrWord + 1))
	word := (uint64(uint32(count)) << 32) | uint64(uint32(relWords))
	binary.LittleEndian.PutUint64(b.buf[ptrWordByteOffset:], word)
}

func (b *Builder) readPointer(ptrWordByteOffset int) (targetByteOffset int, count int, null bool) {
	word := binary.LittleEndian.Uint64(b.buf[ptrWordByteOffset:])
	if word == 0 {
		return 0, 0, true
	}
	relWords := int32(uint32(word))
	count = int(int32(uint32(word >> 32)))
	ptrWord := ptrWordByteOffset / wordSize
	targetWord := ptrWord + 1 + int(relWords)
	return targetWord * wordSize, count, false
}

// SetText allocates bytes+a trailing null and links ptrIndex to it. count
// encodes the byte length including the terminator.
func (b *Builder) SetText(ptrIndex int, s string) error {
	b.checkPtrIndex(ptrIndex)
	n := len(s) + 1
	offset, err := b.reserve(n)
	if err != nil {
		return err
	}
	copy(b.buf[offset:], s)
	b.buf[offset+len(s)] = 0
	b.writePointer(b.rootPtrOffset+ptrIndex*wordSize, offset, n)
	return nil
}

// GetText reads back a text field set by SetText.
func (b *Builder) GetText(ptrIndex int) (string, bool) {
	b.checkPtrIndex(ptrIndex)
	offset, count, null := b.readPointer(b.rootPtrOffset + ptrIndex*wordSize)
	if null || count == 0 {
		return "", false
	}
	return string(b.buf[offset : offset+count-1]), true
}

// SetTextList allocates a pointer-list of text blobs and links ptrIndex to
// it. count on the list pointer is the number of elements.
func (b *Builder) SetTextList(ptrIndex int, items []string) error {
	b.checkPtrIndex(ptrIndex)
	listOffset, err := b.reserve(len(items) * wordSize)
	if err != nil {
		return err
	}
	for i, s := range items {
		n := len(s) + 1
		textOffset, err := b.reserve(n)
		if err != nil {
			return err
		}
		copy(b.buf[textOffset:], s)
		b.buf[textOffset+len(s)] = 0
		b.writePointer(listOffset+i*wordSize, textOffset, n)
	}
	b.writePointer(b.rootPtrOffset+ptrIndex*wordSize, listOffset, len(items))
	return nil
}

// GetTextList reads back a text-list field set by SetTextList.
func (b *Builder) GetTextList(ptrIndex int) ([]string, bool) {
	b.checkPtrIndex(ptrIndex)
	listOffset, n, null := b.readPointer(b.rootPtrOffset + ptrIndex*wordSize)
	if null {
		return nil, false
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		textOffset, count, null := b.readPointer(listOffset + i*wordSize)
		if null {
			out = append(out, "")
			continue
		}
		out = append(out, string(b.buf[textOffset:textOffset+count-1]))
	}
	return out, true
}

// CompositeList is a handle for setting fields on the elements of a
// composite (struct) list allocated by AllocCompositeList.
type CompositeList struct {
	b         *Builder
	bodyStart int
	elemWords int // dataWords + ptrWords per element
	dataWords int
	count     int
}

// AllocCompositeList allocates a composite list of count elements, each
// with dataWords data words and ptrWords pointer words, preceded by a tag
// word encoding the element shape (spec.md §4.10's "tag word").
func (b *Builder) AllocCompositeList(ptrIndex, count, dataWords, ptrWords int) (*CompositeList, error) {
	b.checkPtrIndex(ptrIndex)
	elemWords := dataWords + ptrWords
	total := wordSize + count*elemWords*wordSize // tag word + body
	offset, err := b.reserve(total)
	if err != nil {
		return nil, err
	}
	tag := (uint64(uint32(count)) << 32) | (uint64(uint32(dataWords)) << 16) | uint64(uint32(ptrWords))
	binary.LittleEndian.PutUint64(b.buf[offset:], tag)
	bodyStart := offset + wordSize
	b.writePointer(b.rootPtrOffset+ptrIndex*wordSize, offset, count)
	return &CompositeList{b: b, bodyStart: bodyStart, elemWords: elemWords, dataWords: dataWords, count: count}, nil
}

func (c *CompositeList) elemOffset(i int) int {
	if i < 0 || i >= c.count {
		panic(fmt.Sprintf("wire: composite list index %d out of range for %d elements", i, c.count))
	}
	return c.bodyStart + i*c.elemWords*wordSize
}

func (c *CompositeList) SetUint32(i, byteOffset int, v uint32) {
	off := c.elemOffset(i) + byteOffset
	binary.LittleEndian.PutUint32(c.b.buf[off:], v)
}

func (c *CompositeList) SetFloat64(i, byteOffset int, v float64) {
	off := c.elemOffset(i) + byteOffset
	binary.LittleEndian.PutUint64(c.b.buf[off:], float64bits(v))
}

func (c *CompositeList) SetText(i, ptrIndexInElem int, s string) error {
	n := len(s) + 1
	textOffset, err := c.b.reserve(n)
	if err != nil {
		return err
	}
	copy(c.b.buf[textOffset:], s)
	c.b.buf[textOffset+len(s)] = 0
	ptrWordOffset := c.elemOffset(i) + c.dataWords*wordSize + ptrIndexInElem*wordSize
	c.b.writePointer(ptrWordOffset, textOffset, n)
	return nil
}

func (c *CompositeList) GetUint32(i, byteOffset int) uint32 {
	off := c.elemOffset(i) + byteOffset
	return binary.LittleEndian.Uint32(c.b.buf[off:])
}

func (c *CompositeList) GetFloat64(i, byteOffset int) float64 {
	off := c.elemOffset(i) + byteOffset
	return float64frombits(binary.LittleEndian.Uint64(c.b.buf[off:]))
}

func (c *CompositeList) GetText(i, ptrIndexInElem int) (string, bool) {
	ptrWordOffset := c.elemOffset(i) + c.dataWords*wordSize + ptrIndexInElem*wordSize
	offset, count, null := c.b.readPointer(ptrWordOffset)
	if null || count == 0 {
		return "", false
	}
	return string(c.b.buf[offset : offset+count-1]), true
}

// Count returns the number of elements in the composite list.
func (c *CompositeList) Count() int { return c.count }

// GetCompositeList reads back a composite-list field previously allocated
// by AllocCompositeList, given the element shape the caller expects.
func (b *Builder) GetCompositeList(ptrIndex, dataWords, ptrWords int) (*CompositeList, bool) {
	b.checkPtrIndex(ptrIndex)
	offset, count, null := b.readPointer(b.rootPtrOffset + ptrIndex*wordSize)
	if null {
		return nil, false
	}
	// offset points at the tag word; the body follows it.
	return &CompositeList{b: b, bodyStart: offset + wordSize, elemWords: dataWords + ptrWords, dataWords: dataWords, count: count}, true
}

func float64bits(f float64) uint64      { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// WriteMessage emits the canonical one-segment message header followed by
// the segment bytes: a little-endian uint32 segment count (always 1) and a
// uint32 word count, then the raw segment.
func (b *Builder) WriteMessage(w io.Writer) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], 1)
	binary.LittleEndian.PutUint32(header[4:8], uint32(b.used/wordSize))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(b.buf[:b.used])
	return err
}

// ReadMessage parses a header + segment previously written by WriteMessage
// and returns a Builder positioned for reads (Get* methods) against the
// given root shape.
func ReadMessage(r io.Reader, dataWords, ptrWords int) (*Builder, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	segCount := binary.LittleEndian.Uint32(header[0:4])
	if segCount != 1 {
		return nil, fmt.Errorf("wire: only single-segment messages are supported, got %d segments", segCount)
	}
	wordCount := binary.LittleEndian.Uint32(header[4:8])
	buf := make([]byte, int(wordCount)*wordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return &Builder{
		buf:            buf,
		used:           len(buf),
		dataWords:      dataWords,
		ptrWords:       ptrWords,
		rootDataOffset: 0,
		rootPtrOffset:  dataWords * wordSize,
	}, nil
}

func (b *Builder) GetUint64(byteOffset int) uint64 {
	b.checkDataOffset(byteOffset, 8)
	return binary.LittleEndian.Uint64(b.buf[b.rootDataOffset+byteOffset:])
}

func (b *Builder) GetUint32(byteOffset int) uint32 {
	b.checkDataOffset(byteOffset, 4)
	return binary.LittleEndian.Uint32(b.buf[b.rootDataOffset+byteOffset:])
}

func (b *Builder) GetFloat64(byteOffset int) float64 {
	return float64frombits(b.GetUint64(byteOffset))
}

func (b *Builder) GetByte(byteOffset int) byte {
	b.checkDataOffset(byteOffset, 1)
	return b.buf[b.rootDataOffset+byteOffset]
}

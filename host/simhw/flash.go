package simhw

import (
	"errors"
)

var errFlashRange = errors.New("flash: access out of range")

// Flash is an in-memory NOR flash: erase sets bytes to 0xFF and writes can
// only clear bits.
type Flash struct {
	data       []byte
	writeBlock int64
	eraseBlock int64
	Erases     int
}

// NewFlash creates a fully erased device of blocks erase blocks.
func NewFlash(blocks int, eraseBlock, writeBlock int64) *Flash {
	f := &Flash{data: make([]byte, int64(blocks)*eraseBlock), writeBlock: writeBlock, eraseBlock: eraseBlock}
	for i := range f.data {
		f.data[i] = 0xFF
	}
	return f
}

func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, errFlashRange
	}
	return copy(p, f.data[off:]), nil
}

func (f *Flash) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, errFlashRange
	}
	for i, b := range p {
		f.data[off+int64(i)] &= b
	}
	return len(p), nil
}

func (f *Flash) Size() int64           { return int64(len(f.data)) }
func (f *Flash) WriteBlockSize() int64 { return f.writeBlock }
func (f *Flash) EraseBlockSize() int64 { return f.eraseBlock }

func (f *Flash) EraseBlocks(start, length int64) error {
	from, to := start*f.eraseBlock, (start+length)*f.eraseBlock
	if start < 0 || to > int64(len(f.data)) {
		return errFlashRange
	}
	for i := from; i < to; i++ {
		f.data[i] = 0xFF
	}
	f.Erases++
	return nil
}

// Corrupt flips one byte, for checksum tests.
func (f *Flash) Corrupt(off int64) {
	f.data[off] ^= 0x5A
}

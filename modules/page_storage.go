package modules

import (
	"encoding/binary"
	"errors"

	"filamux/core"
)

var (
	// ErrSlotRange is returned for a slot beyond the stored page.
	ErrSlotRange = errors.New("storage: slot out of range")
	// ErrPageTooSmall is returned when the device page cannot hold every slot.
	ErrPageTooSmall = errors.New("storage: write block too small")
)

// BlockDevice is the flash interface of the storage page. machine.Flash
// satisfies it on hardware.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

// Page layout: magic, slot count, one little-endian uint16 per slot in
// 0.1mm with 0xFFFF meaning unset, then CRC16 over everything before it.
var pageMagic = [4]byte{'F', 'M', 'X', '1'}

const (
	pageHeaderLen = 5
	unsetLength   = 0xFFFF
)

func pageLen(slots int) int { return pageHeaderLen + 2*slots + 2 }

// EncodePage writes lengths into dst, which must hold pageLen(len(lengths)).
func EncodePage(dst []byte, lengths []uint16) {
	copy(dst, pageMagic[:])
	dst[4] = uint8(len(lengths))
	for i, v := range lengths {
		binary.LittleEndian.PutUint16(dst[pageHeaderLen+2*i:], v)
	}
	n := pageHeaderLen + 2*len(lengths)
	binary.LittleEndian.PutUint16(dst[n:], core.CRC16(dst[:n]))
}

// DecodePage returns the stored lengths. ok is false for an erased,
// foreign or corrupted page.
func DecodePage(src []byte) (lengths []uint16, ok bool) {
	if len(src) < pageHeaderLen || [4]byte(src[:4]) != pageMagic {
		return nil, false
	}
	slots := int(src[4])
	n := pageHeaderLen + 2*slots
	if len(src) < n+2 || binary.LittleEndian.Uint16(src[n:]) != core.CRC16(src[:n]) {
		return nil, false
	}
	lengths = make([]uint16, slots)
	for i := range lengths {
		lengths[i] = binary.LittleEndian.Uint16(src[pageHeaderLen+2*i:])
	}
	return lengths, true
}

// PageStorage keeps bowden lengths in the last erase block of a BlockDevice.
// Every write erases the block and rewrites one page.
type PageStorage struct {
	dev     BlockDevice
	base    int64
	page    []byte
	lengths []uint16
}

// NewPageStorage loads the stored page. An unreadable page starts empty.
func NewPageStorage(dev BlockDevice, slots int) (*PageStorage, error) {
	page := make([]byte, dev.WriteBlockSize())
	if len(page) < pageLen(slots) {
		return nil, ErrPageTooSmall
	}
	s := &PageStorage{
		dev:     dev,
		base:    dev.Size() - dev.EraseBlockSize(),
		page:    page,
		lengths: make([]uint16, slots),
	}
	for i := range s.lengths {
		s.lengths[i] = unsetLength
	}
	if _, err := dev.ReadAt(page, s.base); err == nil {
		if stored, ok := DecodePage(page); ok {
			copy(s.lengths, stored)
		}
	}
	return s, nil
}

func (s *PageStorage) BowdenLength(slot uint8) (float64, bool) {
	if int(slot) >= len(s.lengths) || s.lengths[slot] == unsetLength {
		return 0, false
	}
	return float64(s.lengths[slot]) / 10, true
}

func (s *PageStorage) SetBowdenLength(slot uint8, mm float64) error {
	if int(slot) >= len(s.lengths) {
		return ErrSlotRange
	}
	s.lengths[slot] = uint16(mm*10 + 0.5)
	for i := range s.page {
		s.page[i] = 0xFF
	}
	EncodePage(s.page, s.lengths)
	if err := s.dev.EraseBlocks(s.base/s.dev.EraseBlockSize(), 1); err != nil {
		return err
	}
	_, err := s.dev.WriteAt(s.page, s.base)
	return err
}

package store

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	headerMagic   = "HTR1"
	headerVersion = uint16(1)
	headerSize    = 64

	// slotSize is the on-disk size of one slot-table entry:
	// dataOffset (8) + dataLength (4) + next (4).
	slotSize = 16
)

// header is the fixed-size control block at offset 0 of a FileStore file.
// Every mutating operation rewrites it after updating the in-memory copy.
type header struct {
	uuid           uuid.UUID
	slotTableOff   uint64
	slotTableCap   uint32
	slotCount      uint32
	freeSlotHead   uint64 // 1-based slot index of the first free slot, 0 = none
	nextOffset     uint64 // bump-allocator append pointer
}

func newHeader() header {
	return header{
		uuid:       uuid.New(),
		nextOffset: headerSize,
	}
}

func (h *header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], headerMagic)
	binary.LittleEndian.PutUint16(buf[4:6], headerVersion)
	copy(buf[8:24], h.uuid[:])
	binary.LittleEndian.PutUint64(buf[24:32], h.slotTableOff)
	binary.LittleEndian.PutUint32(buf[32:36], h.slotTableCap)
	binary.LittleEndian.PutUint32(buf[36:40], h.slotCount)
	binary.LittleEndian.PutUint64(buf[40:48], h.freeSlotHead)
	binary.LittleEndian.PutUint64(buf[48:56], h.nextOffset)
	return buf
}

func (h *header) unmarshal(buf []byte) error {
	if len(buf) < headerSize {
		return errors.New("store: truncated header")
	}
	if string(buf[0:4]) != headerMagic {
		return errors.Errorf("store: bad magic %q", buf[0:4])
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != headerVersion {
		return errors.Errorf("store: unsupported format version %d", v)
	}
	copy(h.uuid[:], buf[8:24])
	h.slotTableOff = binary.LittleEndian.Uint64(buf[24:32])
	h.slotTableCap = binary.LittleEndian.Uint32(buf[32:36])
	h.slotCount = binary.LittleEndian.Uint32(buf[36:40])
	h.freeSlotHead = binary.LittleEndian.Uint64(buf[40:48])
	h.nextOffset = binary.LittleEndian.Uint64(buf[48:56])
	return nil
}

// slot is one entry of the slot table: where a record's bytes currently
// live, or (when free) the next free slot index.
type slot struct {
	dataOffset uint64
	dataLength uint32
	next       uint32
}

func (s *slot) marshal() []byte {
	buf := make([]byte, slotSize)
	binary.LittleEndian.PutUint64(buf[0:8], s.dataOffset)
	binary.LittleEndian.PutUint32(buf[8:12], s.dataLength)
	binary.LittleEndian.PutUint32(buf[12:16], s.next)
	return buf
}

func (s *slot) unmarshal(buf []byte) {
	s.dataOffset = binary.LittleEndian.Uint64(buf[0:8])
	s.dataLength = binary.LittleEndian.Uint32(buf[8:12])
	s.next = binary.LittleEndian.Uint32(buf[12:16])
}

package store

import (
	"bytes"
	"os"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("store")

// FileStore is a single-file, slotted record store. Each record is
// addressed by a stable RecordID (a 1-based slot index) that never
// changes for the life of the record, even though Update always
// relocates the record's bytes: the old bytes are abandoned in place
// rather than reclaimed, the same way the rest of the file accumulates
// garbage from deleted slots. Defragmentation (see internal/htree's
// Tree.Defrag) is how that waste gets reclaimed.
//
// FileStore performs no internal locking; like the index it backs, it
// assumes its owner serializes access.
type FileStore struct {
	f *os.File
	h header
}

// Open opens path, creating it with a fresh header if it does not
// already exist.
func Open(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "store: stat %s", path)
	}

	s := &FileStore{f: f}
	if info.Size() == 0 {
		s.h = newHeader()
		if err := s.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		log.Debugf("store: initialized new file %s (instance %s)", path, s.h.uuid)
		return s, nil
	}

	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "store: read header of %s", path)
	}
	if err := s.h.unmarshal(buf); err != nil {
		f.Close()
		return nil, err
	}
	log.Debugf("store: opened existing file %s (instance %s)", path, s.h.uuid)
	return s, nil
}

func (s *FileStore) writeHeader() error {
	if _, err := s.f.WriteAt(s.h.marshal(), 0); err != nil {
		return errors.Wrap(err, "store: write header")
	}
	return nil
}

// bumpAlloc reserves n bytes at the current end of the store and
// returns their starting offset.
func (s *FileStore) bumpAlloc(n int) uint64 {
	off := s.h.nextOffset
	s.h.nextOffset += uint64(n)
	return off
}

func (s *FileStore) readSlot(idx uint32) (slot, error) {
	var sl slot
	buf := make([]byte, slotSize)
	off := s.h.slotTableOff + uint64(idx)*slotSize
	if _, err := s.f.ReadAt(buf, int64(off)); err != nil {
		return sl, errors.Wrapf(err, "store: read slot %d", idx)
	}
	sl.unmarshal(buf)
	return sl, nil
}

func (s *FileStore) writeSlot(idx uint32, sl slot) error {
	off := s.h.slotTableOff + uint64(idx)*slotSize
	if _, err := s.f.WriteAt(sl.marshal(), int64(off)); err != nil {
		return errors.Wrapf(err, "store: write slot %d", idx)
	}
	return nil
}

// ensureSlotCapacity grows the slot table, relocating it to freshly
// bump-allocated space, until it can hold at least need entries.
func (s *FileStore) ensureSlotCapacity(need uint32) error {
	if need <= s.h.slotTableCap {
		return nil
	}
	newCap := s.h.slotTableCap * 2
	if newCap < 16 {
		newCap = 16
	}
	if newCap < need {
		newCap = need
	}
	newOff := s.bumpAlloc(int(newCap) * slotSize)
	if s.h.slotTableCap > 0 {
		old := make([]byte, int(s.h.slotTableCap)*slotSize)
		if _, err := s.f.ReadAt(old, int64(s.h.slotTableOff)); err != nil {
			return errors.Wrap(err, "store: relocate slot table")
		}
		if _, err := s.f.WriteAt(old, int64(newOff)); err != nil {
			return errors.Wrap(err, "store: relocate slot table")
		}
	}
	log.Debugf("store: grew slot table %d -> %d entries", s.h.slotTableCap, newCap)
	s.h.slotTableOff = newOff
	s.h.slotTableCap = newCap
	return nil
}

func (s *FileStore) allocSlot() (uint32, error) {
	if s.h.freeSlotHead != 0 {
		idx := uint32(s.h.freeSlotHead - 1)
		sl, err := s.readSlot(idx)
		if err != nil {
			return 0, err
		}
		s.h.freeSlotHead = uint64(sl.next)
		return idx, nil
	}
	if err := s.ensureSlotCapacity(s.h.slotCount + 1); err != nil {
		return 0, err
	}
	idx := s.h.slotCount
	s.h.slotCount++
	return idx, nil
}

func (s *FileStore) checkID(id RecordID) (uint32, error) {
	if id == 0 {
		return 0, errors.New("store: record id 0 is reserved")
	}
	idx := uint32(id - 1)
	if idx >= s.h.slotCount {
		return 0, errors.Errorf("store: record id %d out of range", id)
	}
	return idx, nil
}

func (s *FileStore) Fetch(id RecordID, dec Decoder) (any, error) {
	raw, err := s.FetchRaw(id)
	if err != nil {
		return nil, err
	}
	v, err := dec.DecodeFrom(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "store: decode record %d", id)
	}
	return v, nil
}

func (s *FileStore) FetchRaw(id RecordID) ([]byte, error) {
	idx, err := s.checkID(id)
	if err != nil {
		return nil, err
	}
	sl, err := s.readSlot(idx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sl.dataLength)
	if sl.dataLength > 0 {
		if _, err := s.f.ReadAt(buf, int64(sl.dataOffset)); err != nil {
			return nil, errors.Wrapf(err, "store: read record %d", id)
		}
	}
	return buf, nil
}

func (s *FileStore) Insert(v Encoder) (RecordID, error) {
	var buf bytes.Buffer
	if err := v.EncodeTo(&buf); err != nil {
		return 0, errors.Wrap(err, "store: encode record")
	}
	idx, err := s.allocSlot()
	if err != nil {
		return 0, err
	}
	if err := s.writeData(idx, buf.Bytes()); err != nil {
		return 0, err
	}
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return RecordID(idx + 1), nil
}

func (s *FileStore) ForceInsert(id RecordID, raw []byte) error {
	if id == 0 {
		return errors.New("store: record id 0 is reserved")
	}
	idx := uint32(id - 1)
	if idx+1 > s.h.slotCount {
		if err := s.ensureSlotCapacity(idx + 1); err != nil {
			return err
		}
		s.h.slotCount = idx + 1
	}
	if err := s.writeData(idx, raw); err != nil {
		return err
	}
	return s.writeHeader()
}

func (s *FileStore) Update(id RecordID, v Encoder) error {
	idx, err := s.checkID(id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := v.EncodeTo(&buf); err != nil {
		return errors.Wrapf(err, "store: encode record %d", id)
	}
	if err := s.writeData(idx, buf.Bytes()); err != nil {
		return err
	}
	return s.writeHeader()
}

// writeData bump-allocates fresh space for raw and points slot idx at
// it, abandoning whatever bytes the slot previously referenced.
func (s *FileStore) writeData(idx uint32, raw []byte) error {
	off := s.bumpAlloc(len(raw))
	if len(raw) > 0 {
		if _, err := s.f.WriteAt(raw, int64(off)); err != nil {
			return errors.Wrapf(err, "store: write record data at slot %d", idx)
		}
	}
	return s.writeSlot(idx, slot{dataOffset: off, dataLength: uint32(len(raw))})
}

func (s *FileStore) Delete(id RecordID) error {
	idx, err := s.checkID(id)
	if err != nil {
		return err
	}
	if err := s.writeSlot(idx, slot{next: uint32(s.h.freeSlotHead)}); err != nil {
		return err
	}
	s.h.freeSlotHead = uint64(idx) + 1
	return s.writeHeader()
}

func (s *FileStore) Close() error {
	return s.f.Close()
}

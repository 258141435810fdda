package cfb

import "io"

// sectorStore is a random-access byte window over the backing file or
// memory buffer, addressed in logical sectors. Logical sector n lives at
// file offset headerSize + n*sectorSize; headerSize always equals
// sectorSize (the header occupies one full sector, padded with zeroes
// when sectorSize is 4096).
type sectorStore struct {
	ra   io.ReaderAt
	size uint32 // sector size in bytes
}

func newSectorStore(ra io.ReaderAt, size uint32) *sectorStore {
	return &sectorStore{ra: ra, size: size}
}

// offset returns the file offset of logical sector sn.
func (s *sectorStore) offset(sn uint32) int64 {
	return int64(sn+1) * int64(s.size)
}

// read reads the full contents of logical sector sn.
func (s *sectorStore) read(sn uint32) ([]byte, error) {
	buf := make([]byte, s.size)
	if err := s.readAt(buf, s.offset(sn)); err != nil {
		return nil, err
	}
	return buf, nil
}

// readAt reads len(b) bytes at the given absolute file offset, tolerating
// a short final read (as happens at end-of-file) by zero-filling the
// remainder — callers that need to distinguish truncation do so via the
// returned error only for genuine I/O failures.
func (s *sectorStore) readAt(b []byte, offset int64) error {
	n, err := s.ra.ReadAt(b, offset)
	if err != nil && err != io.EOF {
		return newErr(ErrRead, "read error: "+err.Error())
	}
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
	return nil
}

// header returns the first lenHeader bytes of the container.
func (s *sectorStore) header(lenHeader int) ([]byte, error) {
	buf := make([]byte, lenHeader)
	if err := s.readAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

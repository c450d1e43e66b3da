package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tablestore/pkg/storage"
)

// Key Schema:
//
//	o/<path>  ->  [8 bytes mtime (unix nanos, big endian)][16 bytes etag][payload]
//
// Only objects are stored. Directories are implied by the "/" separators of
// the paths, exactly like in an object store.
const (
	objectPrefix = "o/"

	mtimeLen  = 8
	etagLen   = 16
	headerLen = mtimeLen + etagLen
)

func keyObject(location storage.Path) []byte {
	return []byte(objectPrefix + location.String())
}

// keyScan returns the iteration prefix covering location and everything
// below it. Results still need a segment-wise prefix check.
func keyScan(location storage.Path) []byte {
	if location.IsRoot() {
		return []byte(objectPrefix)
	}
	return keyObject(location)
}

func pathFromKey(key []byte) (storage.Path, error) {
	return storage.ParsePath(string(key[len(objectPrefix):]))
}

// header is the metadata stored in front of every payload.
type header struct {
	modified time.Time
	etag     uuid.UUID
}

func newHeader() header {
	return header{modified: time.Now().UTC(), etag: uuid.New()}
}

func (h header) ETag() string {
	return h.etag.String()
}

func encodeValue(h header, payload []byte) []byte {
	buf := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint64(buf[:mtimeLen], uint64(h.modified.UnixNano()))
	copy(buf[mtimeLen:headerLen], h.etag[:])
	copy(buf[headerLen:], payload)
	return buf
}

// decodeValue splits a stored value into its header and payload. The
// payload aliases val.
func decodeValue(val []byte) (header, []byte, error) {
	if len(val) < headerLen {
		return header{}, nil, fmt.Errorf("corrupt value: %d bytes is shorter than the header", len(val))
	}
	var h header
	h.modified = time.Unix(0, int64(binary.BigEndian.Uint64(val[:mtimeLen]))).UTC()
	copy(h.etag[:], val[mtimeLen:headerLen])
	return h, val[headerLen:], nil
}

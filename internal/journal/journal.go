// Package journal keeps an append-only log of stroke commits so an
// unsaved buffer can be rebuilt after a crash. It is a local recovery
// aid, not evidence: entries carry a CRC against corruption and nothing
// against tampering.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Version and magic constants
const (
	Version    = 1
	Magic      = "HPJL"
	HeaderSize = 64
)

// Entry types
type EntryType uint8

const (
	EntrySessionStart EntryType = 1 // New painting session
	EntryStrokeCommit EntryType = 2 // Stroke merged into the buffer
	EntrySaveMarker   EntryType = 3 // Buffer saved to the cache file
	EntryClearMarker  EntryType = 4 // Buffer cleared
)

// Errors
var (
	ErrInvalidMagic   = errors.New("journal: invalid magic number")
	ErrInvalidVersion = errors.New("journal: unsupported version")
	ErrCorruptedEntry = errors.New("journal: corrupted entry (CRC mismatch)")
	ErrClosed         = errors.New("journal: log is closed")
	ErrShortPayload   = errors.New("journal: stroke payload too short")
)

// Entry is a single journal entry.
type Entry struct {
	// Length of the entire entry (for seeking)
	Length uint32

	// Monotonic sequence number
	Sequence uint64

	// Entry timestamp (UnixNano)
	Timestamp int64

	// Entry type discriminator
	Type EntryType

	// Type-specific payload
	Payload []byte

	// CRC32 for corruption detection
	CRC32 uint32
}

// Journal is an append-only commit log.
type Journal struct {
	mu sync.Mutex

	path string
	file *os.File

	nextSequence uint64
	closed       bool

	entryCount uint64
	byteCount  int64
}

// Open opens or creates a journal file. An existing file is scanned to
// the first corrupt or truncated entry; appends continue from there, so
// a torn tail from a crash is overwritten rather than fatal.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	j := &Journal{
		path: path,
		file: file,
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat journal file: %w", err)
	}

	if stat.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			file.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		j.byteCount = HeaderSize
		if _, err := file.Seek(HeaderSize, 0); err != nil {
			file.Close()
			return nil, fmt.Errorf("seek after header: %w", err)
		}
	} else {
		if err := j.readHeader(); err != nil {
			file.Close()
			return nil, fmt.Errorf("read header: %w", err)
		}
		if err := j.scanToEnd(); err != nil {
			file.Close()
			return nil, fmt.Errorf("scan journal: %w", err)
		}
	}

	return j, nil
}

// writeHeader writes the journal header to a new file.
func (j *Journal) writeHeader() error {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], Version)
	binary.BigEndian.PutUint64(buf[8:16], uint64(time.Now().UnixNano()))
	// Bytes 16-24 hold the last truncation sequence, zero for a new
	// log; the rest is reserved.

	if _, err := j.file.WriteAt(buf, 0); err != nil {
		return err
	}
	return j.file.Sync()
}

// readHeader reads and validates the journal header.
func (j *Journal) readHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := j.file.ReadAt(buf, 0); err != nil {
		return err
	}

	if string(buf[0:4]) != Magic {
		return ErrInvalidMagic
	}
	version := binary.BigEndian.Uint32(buf[4:8])
	if version != Version {
		return fmt.Errorf("%w: got %d, expected %d", ErrInvalidVersion, version, Version)
	}
	return nil
}

// scanToEnd walks the entries to find the append position, stopping at
// the first corrupt or short entry.
func (j *Journal) scanToEnd() error {
	offset := int64(HeaderSize)

	for {
		lenBuf := make([]byte, 4)
		_, err := j.file.ReadAt(lenBuf, offset)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		entryLen := binary.BigEndian.Uint32(lenBuf)
		if entryLen == 0 {
			break
		}

		entryBuf := make([]byte, entryLen)
		if _, err := j.file.ReadAt(entryBuf, offset); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return err
		}

		entry, err := deserializeEntry(entryBuf)
		if err != nil {
			break
		}
		if entry.CRC32 != computeEntryCRC(entry) {
			break
		}

		j.nextSequence = entry.Sequence + 1
		j.entryCount++
		offset += int64(entryLen)
	}

	j.byteCount = offset
	if _, err := j.file.Seek(offset, 0); err != nil {
		return err
	}
	return nil
}

// Append adds a new entry to the journal and syncs it to disk.
func (j *Journal) Append(entryType EntryType, payload []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	entry := &Entry{
		Sequence:  j.nextSequence,
		Timestamp: time.Now().UnixNano(),
		Type:      entryType,
		Payload:   payload,
	}
	entry.CRC32 = computeEntryCRC(entry)

	data := serializeEntry(entry)
	entry.Length = uint32(len(data))
	binary.BigEndian.PutUint32(data[0:4], entry.Length)

	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync entry: %w", err)
	}

	j.nextSequence++
	j.entryCount++
	j.byteCount += int64(len(data))

	return nil
}

// AppendSessionStart records the beginning of a painting session.
func (j *Journal) AppendSessionStart(tool string) error {
	return j.Append(EntrySessionStart, []byte(tool))
}

// AppendStroke records a committed stroke: the id followed by the
// encoded stroke record.
func (j *Journal) AppendStroke(strokeID int32, record []byte) error {
	payload := make([]byte, 4+len(record))
	binary.BigEndian.PutUint32(payload[0:4], uint32(strokeID))
	copy(payload[4:], record)
	return j.Append(EntryStrokeCommit, payload)
}

// AppendSave marks the buffer as saved to the given cache path.
func (j *Journal) AppendSave(path string) error {
	return j.Append(EntrySaveMarker, []byte(path))
}

// AppendClear marks the buffer as cleared.
func (j *Journal) AppendClear() error {
	return j.Append(EntryClearMarker, nil)
}

// StrokePayload splits a stroke commit payload into its id and record.
func StrokePayload(e Entry) (int32, []byte, error) {
	if e.Type != EntryStrokeCommit || len(e.Payload) < 4 {
		return 0, nil, ErrShortPayload
	}
	return int32(binary.BigEndian.Uint32(e.Payload[0:4])), e.Payload[4:], nil
}

// ReadAll reads every valid entry. Reading stops silently at the first
// corrupt entry, mirroring the open scan.
func (j *Journal) ReadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readEntries()
}

// Replay returns the entries after the last save or clear marker: the
// commits that are in no cache file and would be lost without recovery.
func (j *Journal) Replay() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readEntries()
	if err != nil {
		return nil, err
	}

	start := 0
	for i, e := range entries {
		if e.Type == EntrySaveMarker || e.Type == EntryClearMarker {
			start = i + 1
		}
	}
	return entries[start:], nil
}

func (j *Journal) readEntries() ([]Entry, error) {
	var entries []Entry
	offset := int64(HeaderSize)

	for {
		lenBuf := make([]byte, 4)
		_, err := j.file.ReadAt(lenBuf, offset)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		entryLen := binary.BigEndian.Uint32(lenBuf)
		if entryLen == 0 {
			break
		}

		entryBuf := make([]byte, entryLen)
		if _, err := j.file.ReadAt(entryBuf, offset); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}

		entry, err := deserializeEntry(entryBuf)
		if err != nil {
			break
		}
		if entry.CRC32 != computeEntryCRC(entry) {
			break
		}

		entries = append(entries, *entry)
		offset += int64(entryLen)
	}

	return entries, nil
}

// Truncate atomically rewrites the log keeping only entries with a
// sequence greater than afterSeq. Called with the save marker's
// sequence after a successful cache save to stop the log growing
// without bound. Kept entries retain their sequence numbers.
func (j *Journal) Truncate(afterSeq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	entries, err := j.readEntries()
	if err != nil {
		return err
	}
	var keep []Entry
	for _, e := range entries {
		if e.Sequence > afterSeq {
			keep = append(keep, e)
		}
	}

	newPath := j.path + ".new"
	newFile, err := os.Create(newPath)
	if err != nil {
		return err
	}

	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], Version)
	binary.BigEndian.PutUint64(buf[8:16], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint64(buf[16:24], afterSeq)

	if _, err := newFile.Write(buf); err != nil {
		newFile.Close()
		os.Remove(newPath)
		return err
	}

	byteCount := int64(HeaderSize)
	for _, entry := range keep {
		entry.CRC32 = computeEntryCRC(&entry)
		data := serializeEntry(&entry)
		binary.BigEndian.PutUint32(data[0:4], uint32(len(data)))

		if _, err := newFile.Write(data); err != nil {
			newFile.Close()
			os.Remove(newPath)
			return err
		}
		byteCount += int64(len(data))
	}

	if err := newFile.Sync(); err != nil {
		newFile.Close()
		os.Remove(newPath)
		return err
	}
	newFile.Close()

	j.file.Close()
	if err := os.Rename(newPath, j.path); err != nil {
		return err
	}

	j.file, err = os.OpenFile(j.path, os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	if _, err := j.file.Seek(byteCount, 0); err != nil {
		return err
	}

	if len(keep) > 0 {
		j.nextSequence = keep[len(keep)-1].Sequence + 1
	} else {
		j.nextSequence = afterSeq + 1
	}
	j.entryCount = uint64(len(keep))
	j.byteCount = byteCount

	return nil
}

// LastSequence returns the last sequence number written, or zero for an
// empty log.
func (j *Journal) LastSequence() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.nextSequence == 0 {
		return 0
	}
	return j.nextSequence - 1
}

// Size returns the current journal file size in bytes.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.byteCount
}

// EntryCount returns the number of valid entries.
func (j *Journal) EntryCount() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entryCount
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Exists checks if a journal file exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// computeEntryCRC computes the CRC32 for corruption detection.
func computeEntryCRC(entry *Entry) uint32 {
	crc := crc32.NewIEEE()

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], entry.Sequence)
	crc.Write(seqBuf[:])

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(entry.Timestamp))
	crc.Write(tsBuf[:])

	crc.Write([]byte{byte(entry.Type)})
	crc.Write(entry.Payload)

	return crc.Sum32()
}

// serializeEntry serializes an entry to bytes.
func serializeEntry(entry *Entry) []byte {
	size := 4 + // length
		8 + // sequence
		8 + // timestamp
		1 + // type
		4 + // payload length
		len(entry.Payload) +
		4 // crc

	buf := make([]byte, size)
	offset := 0

	// Length (placeholder, filled in later)
	offset += 4

	binary.BigEndian.PutUint64(buf[offset:], entry.Sequence)
	offset += 8

	binary.BigEndian.PutUint64(buf[offset:], uint64(entry.Timestamp))
	offset += 8

	buf[offset] = byte(entry.Type)
	offset++

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(entry.Payload)))
	offset += 4
	copy(buf[offset:], entry.Payload)
	offset += len(entry.Payload)

	binary.BigEndian.PutUint32(buf[offset:], entry.CRC32)

	return buf
}

// deserializeEntry deserializes an entry from bytes.
func deserializeEntry(data []byte) (*Entry, error) {
	if len(data) < 4+8+8+1+4+4 {
		return nil, errors.New("entry too short")
	}

	entry := &Entry{}
	offset := 0

	entry.Length = binary.BigEndian.Uint32(data[offset:])
	offset += 4

	entry.Sequence = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	entry.Timestamp = int64(binary.BigEndian.Uint64(data[offset:]))
	offset += 8

	entry.Type = EntryType(data[offset])
	offset++

	payloadLen := binary.BigEndian.Uint32(data[offset:])
	offset += 4

	if len(data) < offset+int(payloadLen)+4 {
		return nil, errors.New("entry truncated")
	}

	entry.Payload = make([]byte, payloadLen)
	copy(entry.Payload, data[offset:offset+int(payloadLen)])
	offset += int(payloadLen)

	entry.CRC32 = binary.BigEndian.Uint32(data[offset:])

	return entry, nil
}

package journal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

// ===== Open / header =====

func TestJournal_OpenClose(t *testing.T) {
	j, path := createTestJournal(t)

	assert.Equal(t, int64(HeaderSize), j.Size())
	assert.Equal(t, uint64(0), j.EntryCount())
	assert.Equal(t, path, j.Path())
	assert.True(t, Exists(path))

	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "double close is fine")
}

func TestJournal_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "journal.log")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()
	assert.True(t, Exists(path))
}

func TestJournal_OpenInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	junk := make([]byte, HeaderSize)
	copy(junk, "NOPE")
	require.NoError(t, os.WriteFile(path, junk, 0600))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestJournal_OpenInvalidVersion(t *testing.T) {
	j, path := createTestJournal(t)
	j.Close()

	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	require.NoError(t, err)
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], 99)
	_, err = f.WriteAt(v[:], 4)
	require.NoError(t, err)
	f.Close()

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

// ===== Append / read =====

func TestJournal_AppendAndReadAll(t *testing.T) {
	j, _ := createTestJournal(t)

	require.NoError(t, j.AppendSessionStart("sketch"))
	require.NoError(t, j.AppendStroke(7, []byte("record-bytes")))
	require.NoError(t, j.AppendSave("/tmp/strokes.geo"))
	require.NoError(t, j.AppendClear())

	entries, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, EntrySessionStart, entries[0].Type)
	assert.Equal(t, []byte("sketch"), entries[0].Payload)
	assert.Equal(t, EntryStrokeCommit, entries[1].Type)
	assert.Equal(t, EntrySaveMarker, entries[2].Type)
	assert.Equal(t, EntryClearMarker, entries[3].Type)

	for i, e := range entries {
		assert.Equal(t, uint64(i), e.Sequence)
		assert.NotZero(t, e.Timestamp)
	}

	id, record, err := StrokePayload(entries[1])
	require.NoError(t, err)
	assert.Equal(t, int32(7), id)
	assert.Equal(t, []byte("record-bytes"), record)
}

func TestJournal_StrokePayloadErrors(t *testing.T) {
	_, _, err := StrokePayload(Entry{Type: EntrySaveMarker})
	assert.ErrorIs(t, err, ErrShortPayload)

	_, _, err = StrokePayload(Entry{Type: EntryStrokeCommit, Payload: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestJournal_AppendAfterClose(t *testing.T) {
	j, _ := createTestJournal(t)
	j.Close()
	assert.ErrorIs(t, j.Append(EntryClearMarker, nil), ErrClosed)
}

func TestJournal_OpenExistingContinuesSequence(t *testing.T) {
	j, path := createTestJournal(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.AppendStroke(int32(i), []byte("r")))
	}
	j.Close()

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	assert.Equal(t, uint64(3), j2.EntryCount())
	assert.Equal(t, uint64(2), j2.LastSequence())

	require.NoError(t, j2.AppendStroke(3, []byte("r")))
	entries, err := j2.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), entries[len(entries)-1].Sequence)
}

// ===== Replay =====

func TestJournal_ReplayAfterSave(t *testing.T) {
	j, _ := createTestJournal(t)

	require.NoError(t, j.AppendSessionStart("sketch"))
	require.NoError(t, j.AppendStroke(1, []byte("a")))
	require.NoError(t, j.AppendStroke(2, []byte("b")))
	require.NoError(t, j.AppendSave("/tmp/strokes.geo"))
	require.NoError(t, j.AppendStroke(3, []byte("c")))
	require.NoError(t, j.AppendStroke(4, []byte("d")))

	pending, err := j.Replay()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	id, _, err := StrokePayload(pending[0])
	require.NoError(t, err)
	assert.Equal(t, int32(3), id)
}

func TestJournal_ReplayAfterClear(t *testing.T) {
	j, _ := createTestJournal(t)

	require.NoError(t, j.AppendStroke(1, []byte("a")))
	require.NoError(t, j.AppendClear())
	require.NoError(t, j.AppendStroke(2, []byte("b")))

	pending, err := j.Replay()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id, _, err := StrokePayload(pending[0])
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)
}

func TestJournal_ReplayNoMarkers(t *testing.T) {
	j, _ := createTestJournal(t)
	require.NoError(t, j.AppendSessionStart("sketch"))
	require.NoError(t, j.AppendStroke(1, []byte("a")))

	pending, err := j.Replay()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestJournal_ReplayEmpty(t *testing.T) {
	j, _ := createTestJournal(t)
	pending, err := j.Replay()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// ===== Crash recovery =====

func TestJournal_CrashRecovery_TornTail(t *testing.T) {
	j, path := createTestJournal(t)
	require.NoError(t, j.AppendStroke(1, []byte("a")))
	require.NoError(t, j.AppendStroke(2, []byte("b")))
	j.Close()

	// A crash mid-append leaves a partial entry at the tail.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0600)
	require.NoError(t, err)
	var partial [4]byte
	binary.BigEndian.PutUint32(partial[:], 500)
	f.Write(partial[:])
	f.Write([]byte("incomplete"))
	f.Close()

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	assert.Equal(t, uint64(2), j2.EntryCount())
	pending, err := j2.Replay()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestJournal_ScanCorruptedTruncatesAtCorruption(t *testing.T) {
	j, path := createTestJournal(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.AppendStroke(int32(i), []byte("test")))
	}
	j.Close()

	// Corrupt the third entry's CRC.
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	require.NoError(t, err)
	offset := int64(HeaderSize)
	for i := 0; i < 2; i++ {
		lenBuf := make([]byte, 4)
		f.ReadAt(lenBuf, offset)
		offset += int64(binary.BigEndian.Uint32(lenBuf))
	}
	lenBuf := make([]byte, 4)
	f.ReadAt(lenBuf, offset)
	entryLen := binary.BigEndian.Uint32(lenBuf)
	var bad [4]byte
	binary.BigEndian.PutUint32(bad[:], 0xBADBAD)
	f.WriteAt(bad[:], offset+int64(entryLen)-4)
	f.Close()

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	assert.Equal(t, uint64(2), j2.EntryCount())

	// Appends overwrite the corrupt tail.
	require.NoError(t, j2.AppendStroke(9, []byte("fresh")))
	entries, err := j2.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(2), entries[2].Sequence)
}

func TestJournal_ScanZeroLengthTail(t *testing.T) {
	j, path := createTestJournal(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.AppendStroke(int32(i), []byte("test")))
	}
	j.Close()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0600)
	require.NoError(t, err)
	f.Write(make([]byte, 4))
	f.Close()

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()
	assert.Equal(t, uint64(3), j2.EntryCount())
}

// ===== Truncate =====

func TestJournal_Truncate(t *testing.T) {
	j, path := createTestJournal(t)

	require.NoError(t, j.AppendSessionStart("sketch")) // seq 0
	require.NoError(t, j.AppendStroke(1, []byte("a"))) // seq 1
	require.NoError(t, j.AppendSave("/tmp/s.geo"))     // seq 2
	require.NoError(t, j.AppendStroke(2, []byte("b"))) // seq 3

	require.NoError(t, j.Truncate(2))

	entries, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(3), entries[0].Sequence, "kept entries retain sequence numbers")
	assert.Equal(t, EntryStrokeCommit, entries[0].Type)

	// Survives a reopen.
	j.Close()
	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()
	assert.Equal(t, uint64(1), j2.EntryCount())

	require.NoError(t, j2.AppendClear())
	assert.Equal(t, uint64(4), j2.LastSequence())
}

func TestJournal_TruncateAll(t *testing.T) {
	j, _ := createTestJournal(t)
	require.NoError(t, j.AppendStroke(1, []byte("a")))
	require.NoError(t, j.AppendSave("/tmp/s.geo"))

	require.NoError(t, j.Truncate(j.LastSequence()))
	assert.Equal(t, uint64(0), j.EntryCount())
	assert.Equal(t, int64(HeaderSize), j.Size())

	require.NoError(t, j.AppendStroke(2, []byte("b")))
	entries, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(2), entries[0].Sequence, "sequence continues past the truncation point")
}

func TestJournal_TruncateEmpty(t *testing.T) {
	j, _ := createTestJournal(t)
	require.NoError(t, j.Truncate(0))
	assert.Equal(t, uint64(0), j.EntryCount())
}

// ===== Concurrency =====

func TestJournal_ConcurrentAppend(t *testing.T) {
	j, _ := createTestJournal(t)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				assert.NoError(t, j.AppendStroke(1, []byte("x")))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(100), j.EntryCount())

	entries, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 100)
	seen := make(map[uint64]bool, 100)
	for _, e := range entries {
		assert.False(t, seen[e.Sequence], "duplicate sequence %d", e.Sequence)
		seen[e.Sequence] = true
	}
}

//go:build integration

package integration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpaint/internal/capture"
	"hpaint/internal/journal"
	"hpaint/internal/stroke"
	"hpaint/pkg/strokefmt"
)

func countCommits(entries []journal.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Type == journal.EntryStrokeCommit {
			n++
		}
	}
	return n
}

// rebuild replays journaled commits into the current host, the way
// the apps do on startup.
func rebuild(t *testing.T, env *TestEnv, entries []journal.Entry) int32 {
	t.Helper()

	shared := stroke.Shared{Radius: 0.05, Opacity: 1, Color: [4]float32{1, 1, 1, 1}}
	var maxID int32
	for _, e := range entries {
		if e.Type != journal.EntryStrokeCommit {
			continue
		}
		id, payload, err := journal.StrokePayload(e)
		require.NoError(t, err)
		rec, err := strokefmt.DecodeRecord(payload)
		require.NoError(t, err)
		env.Host.MergeGeometry(stroke.StreamsGeometry(rec.Streams, id, shared, false))
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// TestCrashRecoveryBasic loses the buffer mid-session and rebuilds it
// from the journal.
func TestCrashRecoveryBasic(t *testing.T) {
	env := NewTestEnv(t)
	defer env.Cleanup()
	env.InitJournal()

	env.DrawStroke(-0.5, 0, 0.5, 0, 5)
	env.DrawStroke(0, -0.5, 0, 0.5, 3)

	wantPrims := env.Host.Buffer().NumPrims()
	wantSamples := env.SampleCount()

	// Crash: the process dies without a save. Only the journal file
	// survives.
	env.Journal.Close()

	j, err := journal.Open(env.JournalPath)
	require.NoError(t, err)
	env.Journal = j

	entries, err := j.Replay()
	require.NoError(t, err)
	require.Equal(t, 2, countCommits(entries))

	env.InitMachine(capture.Options{})
	maxID := rebuild(t, env, entries)

	assert.Equal(t, wantPrims, env.Host.Buffer().NumPrims())
	assert.Equal(t, wantSamples, env.SampleCount())
	assert.Equal(t, int32(2), maxID)
}

// TestReplayStopsAtSaveMarker verifies that strokes saved to the
// cache no longer replay.
func TestReplayStopsAtSaveMarker(t *testing.T) {
	env := NewTestEnv(t)
	defer env.Cleanup()
	env.InitJournal()

	env.DrawStroke(-0.5, 0, 0.5, 0, 4)
	require.NoError(t, env.Journal.AppendSave(env.CachePath))
	env.DrawStroke(0, -0.5, 0, 0.5, 4)

	entries, err := env.Journal.Replay()
	require.NoError(t, err)
	require.Equal(t, 1, countCommits(entries), "only the post-save stroke replays")

	id, _, err := journal.StrokePayload(entries[len(entries)-1])
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)
}

// TestCrashRecoveryWithCorruption appends a torn write to the journal
// and verifies the valid prefix survives a reopen.
func TestCrashRecoveryWithCorruption(t *testing.T) {
	env := NewTestEnv(t)
	defer env.Cleanup()
	env.InitJournal()

	env.DrawStroke(-0.5, 0, 0.5, 0, 5)
	env.DrawStroke(0, -0.5, 0, 0.5, 3)
	env.Journal.Close()

	f, err := os.OpenFile(env.JournalPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte("GARBAGE THAT IS NOT AN ENTRY"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	j, err := journal.Open(env.JournalPath)
	require.NoError(t, err)
	env.Journal = j

	assert.Equal(t, uint64(2), j.EntryCount(), "valid prefix survives")

	// Appends continue past the corruption point.
	env.DrawStroke(0.2, 0.2, 0.4, 0.4, 2)
	entries, err := j.Replay()
	require.NoError(t, err)
	assert.Equal(t, 3, countCommits(entries))
}

// TestJournalTruncateAfterSave runs the shutdown path: save the
// buffer, mark the journal, truncate it, and verify a reopen sees a
// clean log.
func TestJournalTruncateAfterSave(t *testing.T) {
	env := NewTestEnv(t)
	defer env.Cleanup()
	env.InitCache()
	env.InitJournal()

	env.DrawStroke(-0.5, 0, 0.5, 0, 5)
	env.DrawStroke(0, -0.5, 0, 0.5, 3)

	require.NoError(t, env.Cache.Save(env.Host))
	require.NoError(t, env.Journal.AppendSave(env.CachePath))
	require.NoError(t, env.Journal.Truncate(env.Journal.LastSequence()))

	entries, err := env.Journal.Replay()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, uint64(0), env.Journal.EntryCount())

	env.Journal.Close()
	j, err := journal.Open(env.JournalPath)
	require.NoError(t, err)
	env.Journal = j
	assert.Equal(t, uint64(0), j.EntryCount())

	// The strokes live in the cache file now; a load restores them.
	env.InitMachine(capture.Options{})
	require.NoError(t, env.Cache.Load(env.Host))
	assert.Equal(t, 2, env.Host.Buffer().NumPrims())
	assert.Equal(t, int32(2), env.MaxStrokeID())
}

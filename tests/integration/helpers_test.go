//go:build integration

// Package integration exercises the full hpaint pipeline: pointer
// gestures through the capture machine into the shared buffer, and
// from there into the journal, the cache file and the session
// archive.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"golang.org/x/crypto/blake2b"

	"hpaint/internal/cache"
	"hpaint/internal/capture"
	"hpaint/internal/geo"
	"hpaint/internal/journal"
	"hpaint/internal/project"
	"hpaint/internal/store"
	"hpaint/pkg/strokefmt"
)

// =============================================================================
// Test Environment Setup
// =============================================================================

// TestEnv wires a machine over a memory host with the persistence
// stack bound to a temp directory.
type TestEnv struct {
	T       *testing.T
	TempDir string

	CachePath   string
	JournalPath string
	ArchivePath string

	Host    *capture.MemHost
	Machine *capture.Machine

	Cache   *cache.Cache
	Journal *journal.Journal
	Archive *store.Store
	Session int64

	clock float32
}

// NewTestEnv builds the environment with a machine on the screen
// plane. Persistence components attach on demand via the Init
// methods.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tempDir := t.TempDir()
	env := &TestEnv{
		T:           t,
		TempDir:     tempDir,
		CachePath:   filepath.Join(tempDir, "strokes.geo"),
		JournalPath: filepath.Join(tempDir, "strokes.journal"),
		ArchivePath: filepath.Join(tempDir, "sessions.db"),
	}
	env.InitMachine(capture.Options{})
	return env
}

// InitMachine rebuilds the machine and host with opts. Projection
// defaults to the screen plane, so every ray hits. The commit hook is
// rewired onto the new machine.
func (env *TestEnv) InitMachine(opts capture.Options) {
	env.T.Helper()

	if opts.Proj == (project.Params{}) {
		opts.Proj = project.Params{Mode: project.PlaneScreen}
	}
	env.Host = capture.NewMemHost()
	env.Host.SetScalar(capture.ParamRadius, 0.05)
	env.Host.SetScalar(capture.ParamOpacity, 1)
	env.Host.SetScalar(capture.ParamColorR, 1)
	env.Host.SetScalar(capture.ParamColorG, 1)
	env.Host.SetScalar(capture.ParamColorB, 1)
	env.Host.SetScalar(capture.ParamColorA, 1)
	env.Machine = capture.NewMachine(env.Host, opts)
	env.Machine.Enter()
	env.wireCommitHook()
}

// InitCache binds the cache with auto-approval.
func (env *TestEnv) InitCache() {
	env.T.Helper()
	env.Cache = cache.New(env.CachePath, nil)
}

// InitJournal opens the journal and wires the commit hook so every
// committed stroke appends its encoded record.
func (env *TestEnv) InitJournal() {
	env.T.Helper()

	j, err := journal.Open(env.JournalPath)
	if err != nil {
		env.T.Fatalf("open journal: %v", err)
	}
	env.Journal = j
	env.wireCommitHook()
}

// InitArchive opens the sqlite archive, begins a session and wires
// the commit hook so every committed stroke inserts a commit row.
func (env *TestEnv) InitArchive() {
	env.T.Helper()

	st, err := store.Open(env.ArchivePath)
	if err != nil {
		env.T.Fatalf("open archive: %v", err)
	}
	env.Archive = st
	id, err := st.BeginSession("brush", time.Now().Unix())
	if err != nil {
		env.T.Fatalf("begin session: %v", err)
	}
	env.Session = id
	env.wireCommitHook()
}

// wireCommitHook mirrors the sketch app: encode the accumulator
// streams once per commit, then fan out to whichever sinks exist.
func (env *TestEnv) wireCommitHook() {
	env.Machine.OnPostStroke = func(strokeID int32, _ *geo.Geometry) {
		streams := env.Machine.Accumulator().Streams()
		if len(streams) == 0 || len(streams[0]) == 0 {
			return
		}
		rec := strokefmt.Record{
			Version: strokefmt.Version,
			Count:   int32(len(streams[0])),
			Streams: streams,
		}
		data := strokefmt.EncodeRecord(rec)
		if env.Journal != nil {
			if err := env.Journal.AppendStroke(strokeID, data); err != nil {
				env.T.Fatalf("journal append: %v", err)
			}
		}
		if env.Archive != nil {
			err := env.Archive.InsertCommit(&store.Commit{
				Session:     env.Session,
				StrokeID:    strokeID,
				SampleCount: rec.Count,
				MirrorCount: int32(len(streams)),
				ByteSize:    int64(len(data)),
				ContentHash: blake2b.Sum256(data),
				CreatedAt:   time.Now().Unix(),
			})
			if err != nil {
				env.T.Fatalf("archive insert: %v", err)
			}
		}
	}
}

// Cleanup closes whatever was opened.
func (env *TestEnv) Cleanup() {
	if env.Journal != nil {
		env.Journal.Close()
	}
	if env.Archive != nil {
		env.Archive.Close()
	}
}

// =============================================================================
// Gesture Generators
// =============================================================================

// event builds a pointer event at a canvas position, with the view
// ray pointing down -Z and a ticking device clock.
func (env *TestEnv) event(reason capture.Reason, x, y float32) capture.PointerEvent {
	env.clock += 0.016
	return capture.PointerEvent{
		Reason:   reason,
		Origin:   math32.Vec3(x, y, 1),
		Dir:      math32.Vec3(0, 0, -1),
		Pressure: 1,
		Time:     env.clock,
	}
}

// DrawStroke presses at (x0, y0), moves in steps toward (x1, y1) and
// releases at the end point. The committed stroke carries steps+1
// samples per mirror stream.
func (env *TestEnv) DrawStroke(x0, y0, x1, y1 float32, steps int) {
	env.T.Helper()

	env.Machine.HandleEvent(env.event(capture.Start, x0, y0))
	for i := 1; i <= steps; i++ {
		frac := float32(i) / float32(steps)
		env.Machine.HandleEvent(env.event(capture.Active, x0+(x1-x0)*frac, y0+(y1-y0)*frac))
	}
	env.Machine.HandleEvent(env.event(capture.Changed, x1, y1))
}

// EraseAt clicks with Ctrl held at a canvas position. Shift selects
// whole-stroke erasure.
func (env *TestEnv) EraseAt(x, y float32, wholeStroke bool) {
	env.T.Helper()

	press := env.event(capture.Start, x, y)
	press.Ctrl = true
	press.Shift = wholeStroke
	env.Machine.HandleEvent(press)

	release := env.event(capture.Changed, x, y)
	release.Ctrl = true
	release.Shift = wholeStroke
	env.Machine.HandleEvent(release)
}

// =============================================================================
// Buffer Inspection
// =============================================================================

// StrokeCount returns the number of distinct stroke ids in the
// buffer.
func (env *TestEnv) StrokeCount() int {
	ids := map[int32]bool{}
	buf := env.Host.Buffer()
	for i := 0; i < buf.NumPrims(); i++ {
		if id, ok := buf.PrimI(geo.AttrStrokeID, i); ok {
			ids[id] = true
		}
	}
	return len(ids)
}

// SampleCount sums polyline vertices across the buffer.
func (env *TestEnv) SampleCount() int {
	n := 0
	buf := env.Host.Buffer()
	for i := 0; i < buf.NumPrims(); i++ {
		n += len(buf.Prim(i).Verts)
	}
	return n
}

// MaxStrokeID reads the buffer's high-water stroke id.
func (env *TestEnv) MaxStrokeID() int32 {
	id, _ := env.Host.Buffer().DetailI(geo.AttrMaxStrokeID)
	return id
}

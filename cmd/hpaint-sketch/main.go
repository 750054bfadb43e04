// hpaint-sketch is a windowed sketch pad over the hpaint stroke
// engine.
//
// The left mouse button draws, Ctrl erases (Ctrl+Shift erases whole
// strokes), Shift+drag or the scroll wheel resizes the brush. Strokes
// land in the shared buffer and the buffer is written to the
// configured cache file on exit.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"
	"golang.org/x/crypto/blake2b"

	"hpaint/internal/cache"
	"hpaint/internal/capture"
	"hpaint/internal/config"
	"hpaint/internal/geo"
	"hpaint/internal/journal"
	"hpaint/internal/logging"
	"hpaint/internal/store"
	"hpaint/internal/stroke"
	"hpaint/pkg/strokefmt"
)

// Version is stamped by the build; the default marks dev builds.
var Version = "dev"

var configFlag = flag.String("config", "", "path to config file")

func main() {
	flag.Parse()

	s, err := newSketch(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hpaint-sketch: %v\n", err)
		os.Exit(1)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.crash.HandlePanic(r, nil)
				os.Exit(1)
			}
		}()

		w := new(app.Window)
		w.Option(app.Title("hpaint sketch"))
		w.Option(app.Size(unit.Dp(1024), unit.Dp(768)))

		err := s.loop(w)
		s.shutdown()
		if err != nil {
			s.log.Error("window loop failed", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

// sketch owns the engine state behind the window. Everything is driven
// from the frame loop; the cache watcher only flips reload.
type sketch struct {
	cfg   *config.Config
	log   *logging.Logger
	crash *logging.CrashHandler

	host    *capture.MemHost
	machine *capture.Machine
	cache   *cache.Cache
	watcher *cache.Watcher

	journal *journal.Journal // nil when disabled
	archive *store.Store     // nil when disabled
	session int64

	canvas *canvas

	reload atomic.Bool
	win    *app.Window
}

func newSketch(configPath string) (*sketch, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var warnings config.ValidationErrors
	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if !errors.As(err, &verrs) || verrs.HasErrors() {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		warnings = verrs.Warnings()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	logCfg, err := loggerConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logging.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn("config warning", "field", w.Field, "message", w.Message)
	}

	crash := logging.DefaultCrashHandler()
	crash.SetVersion(Version)

	host := capture.NewMemHost()
	host.SetScalar(capture.ParamRadius, float32(cfg.Brush.Radius))
	host.SetScalar(capture.ParamOpacity, float32(cfg.Brush.Opacity))
	host.SetScalar(capture.ParamTool, float32(cfg.Brush.Tool))
	col := cfg.Brush.BrushColor()
	host.SetScalar(capture.ParamColorR, col[0])
	host.SetScalar(capture.ParamColorG, col[1])
	host.SetScalar(capture.ParamColorB, col[2])
	host.SetScalar(capture.ParamColorA, col[3])

	proj, err := cfg.Projection.Params()
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	mirrors := stroke.BuildMirrors(cfg.Mirrors.Axes, cfg.Mirrors.ExplicitMatrices())

	machine := capture.NewMachine(host, capture.Options{
		Masked:          cfg.Interaction.Masked,
		PressureEnabled: cfg.Brush.PressureEnabled,
		FullStrokeErase: cfg.Interaction.FullStrokeErase,
		Proj:            proj,
		Mirrors:         mirrors,
		Logger:          logger.Logger,
	})
	machine.Enter()

	s := &sketch{
		cfg:     cfg,
		log:     logger,
		crash:   crash,
		host:    host,
		machine: machine,
	}

	path := cache.SnapFramePath(cfg.Cache.Path, 1, cache.SnapPrev)
	s.cache = cache.New(path, nil)
	if _, err := os.Stat(path); err == nil {
		if err := s.cache.Load(host); err != nil {
			logger.Warn("cache load failed", "path", path, "error", err)
		} else {
			logger.Info("cache loaded", "path", path, "prims", host.Buffer().NumPrims())
		}
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = j
		recovered, err := s.replayJournal()
		if err != nil {
			logger.Warn("journal replay failed", "error", err)
		} else if recovered > 0 {
			logger.Info("recovered unsaved strokes", "count", recovered)
		}
		if err := j.AppendSessionStart("brush"); err != nil {
			logger.Warn("journal session marker failed", "error", err)
		}
	}

	if cfg.Archive.Enabled {
		st, err := store.Open(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		s.archive = st
		id, err := st.BeginSession("brush", time.Now().Unix())
		if err != nil {
			return nil, fmt.Errorf("begin session: %w", err)
		}
		s.session = id
		crash.SetSessionID(strconv.FormatInt(id, 10))
	}

	machine.OnPostStroke = s.strokeCommitted
	s.canvas = newCanvas(host, machine, proj)

	logger.Info("sketch ready",
		"cache", path,
		"journal", cfg.Journal.Enabled,
		"archive", cfg.Archive.Enabled,
		"mirrors", len(mirrors))
	return s, nil
}

func (s *sketch) loop(w *app.Window) error {
	s.win = w
	s.startWatcher()

	th := material.NewTheme()

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			if s.reload.CompareAndSwap(true, false) {
				if err := s.cache.Refresh(s.host); err != nil {
					s.log.Warn("cache refresh failed", "error", err)
				}
			}

			s.canvas.Frame(gtx, th)

			e.Frame(gtx.Ops)
		}
	}
}

// strokeCommitted journals and archives each committed stroke. It runs
// on the frame loop between the buffer merge and the accumulator
// reset, so the streams are still readable.
func (s *sketch) strokeCommitted(strokeID int32, _ *geo.Geometry) {
	streams := s.machine.Accumulator().Streams()
	if len(streams) == 0 || len(streams[0]) == 0 {
		return
	}
	rec := strokefmt.Record{
		Version: strokefmt.Version,
		Count:   int32(len(streams[0])),
		Streams: streams,
	}
	data := strokefmt.EncodeRecord(rec)

	if s.journal != nil {
		if err := s.journal.AppendStroke(strokeID, data); err != nil {
			s.log.Warn("journal append failed", "stroke", strokeID, "error", err)
		}
	}
	if s.archive != nil {
		commit := &store.Commit{
			Session:     s.session,
			StrokeID:    strokeID,
			SampleCount: rec.Count,
			MirrorCount: int32(len(streams)),
			ByteSize:    int64(len(data)),
			ContentHash: blake2b.Sum256(data),
			CreatedAt:   time.Now().Unix(),
		}
		if err := s.archive.InsertCommit(commit); err != nil {
			s.log.Warn("archive insert failed", "stroke", strokeID, "error", err)
		}
	}
}

// replayJournal rebuilds unsaved stroke commits into the live buffer.
// Recovered strokes take the configured brush parameters; the journal
// records samples, not slot state.
func (s *sketch) replayJournal() (int, error) {
	entries, err := s.journal.Replay()
	if err != nil {
		return 0, err
	}
	shared := stroke.Shared{
		Radius:  float32(s.cfg.Brush.Radius),
		Opacity: float32(s.cfg.Brush.Opacity),
		Tool:    int32(s.cfg.Brush.Tool),
		Color:   s.cfg.Brush.BrushColor(),
	}
	maxID := int32(s.host.GetScalar(stroke.ParamStrokeNum))
	n := 0
	for _, e := range entries {
		if e.Type != journal.EntryStrokeCommit {
			continue
		}
		id, payload, err := journal.StrokePayload(e)
		if err != nil {
			s.log.Warn("skipping bad journal entry", "seq", e.Sequence, "error", err)
			continue
		}
		rec, err := strokefmt.DecodeRecord(payload)
		if err != nil {
			s.log.Warn("skipping bad stroke record", "seq", e.Sequence, "error", err)
			continue
		}
		s.host.MergeGeometry(stroke.StreamsGeometry(rec.Streams, id, shared, s.cfg.Brush.PressureEnabled))
		if id > maxID {
			maxID = id
		}
		n++
	}
	if n > 0 {
		s.host.SetScalar(stroke.ParamStrokeNum, float32(maxID))
		s.host.Buffer().RaiseDetailI(geo.AttrMaxStrokeID, maxID)
	}
	return n, nil
}

// startWatcher begins cache-file watching when configured. The
// callback only flips a flag; the reload itself runs on the frame
// loop.
func (s *sketch) startWatcher() {
	if !s.cfg.Cache.Watch {
		return
	}
	debounce := time.Duration(s.cfg.Cache.DebounceMs) * time.Millisecond
	w, err := cache.NewWatcher(s.cache.Path(), debounce, func() {
		s.reload.Store(true)
		s.win.Invalidate()
	}, s.log.Logger)
	if err != nil {
		s.log.Warn("cache watch unavailable", "error", err)
		return
	}
	if err := w.Start(); err != nil {
		s.log.Warn("cache watch failed to start", "error", err)
		return
	}
	s.watcher = w
}

// shutdown flushes the session to disk. It runs once, after the frame
// loop returns.
func (s *sketch) shutdown() {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.log.Warn("cache watch stop failed", "error", err)
		}
	}

	if s.cfg.Cache.AutoSave {
		if err := s.cache.Save(s.host); err != nil {
			s.log.Error("cache save failed", "error", err)
		} else if s.journal != nil {
			if err := s.journal.AppendSave(s.cache.Path()); err != nil {
				s.log.Warn("journal save marker failed", "error", err)
			} else if err := s.journal.Truncate(s.journal.LastSequence()); err != nil {
				s.log.Warn("journal truncate failed", "error", err)
			}
		}
	}

	if s.archive != nil {
		if err := s.archive.EndSession(s.session, time.Now().Unix()); err != nil {
			s.log.Warn("session close failed", "error", err)
		}
		if err := s.archive.Close(); err != nil {
			s.log.Warn("archive close failed", "error", err)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.log.Warn("journal close failed", "error", err)
		}
	}

	s.log.Info("session ended")
	s.log.Close()
}

func loggerConfig(cfg *config.Config) (*logging.Config, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}
	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "hpaint-sketch",
	}, nil
}

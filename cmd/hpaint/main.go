// hpaint is the control CLI for the hpaint stroke engine.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/blake2b"

	"hpaint/internal/cache"
	"hpaint/internal/capture"
	"hpaint/internal/config"
	"hpaint/internal/geo"
	"hpaint/internal/journal"
	"hpaint/internal/store"
	"hpaint/internal/stroke"
	"hpaint/pkg/strokefmt"
)

var (
	configPath = flag.String("config", "", "path to config file")
	inverse    = flag.Bool("inverse", false, "swap the complement of the group pattern")
	force      = flag.Bool("force", false, "skip confirmation prompts")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "history":
		session := ""
		if flag.NArg() >= 2 {
			session = flag.Arg(1)
		}
		cmdHistory(session)
	case "cache":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: hpaint cache <save|load|swap|clear|info> [args]")
			os.Exit(1)
		}
		cmdCache(flag.Arg(1), flag.Args()[2:])
	case "recover":
		output := ""
		if flag.NArg() >= 2 {
			output = flag.Arg(1)
		}
		cmdRecover(output)
	case "config":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: hpaint config <show|init|migrate>")
			os.Exit(1)
		}
		cmdConfig(flag.Arg(1))
	case "record":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: hpaint record <file>")
			os.Exit(1)
		}
		cmdRecord(flag.Arg(1))
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `hpaint - Control utility for the hpaint stroke engine

Usage: hpaint [options] <command> [args]

Commands:
  status                       Show cache, journal and archive status
  history [session]            List archived sessions, or one session's commits
  cache info                   Describe the stroke cache file
  cache save <file>            Merge a geometry file into the cache
  cache load <file>            Write the cache contents out to a file
  cache swap <file> [pattern]  Move strokes out of the cache into a file
  cache clear [pattern]        Clear the cache file, or matching groups only
  recover [file]               Rebuild unsaved strokes from the journal
  config show                  Print the effective configuration
  config init                  Write a default config file
  config migrate               Migrate the config file to the current version
  record <file>                Decode and dump an encoded stroke record
  help                         Show this help message

Options:
  -config <path>  Path to config file (default: ~/.config/hpaint/config.toml)
  -inverse        Swap the complement of the group pattern
  -force          Skip confirmation prompts`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// cachePath resolves the configured cache path, snapping a
// frame-numbered pattern to the nearest existing frame.
func cachePath(cfg *config.Config) string {
	return cache.SnapFramePath(cfg.Cache.Path, 1, cache.SnapPrev)
}

// confirm prompts on stdin before a destructive operation. The force
// flag approves everything.
func confirm(prompt string) bool {
	if *force {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func cmdStatus() {
	cfg := loadConfig()

	fmt.Println("=== hpaint Status ===")
	fmt.Println()

	src := *configPath
	if src == "" {
		src = config.FindConfigFile()
	}
	if src == "" {
		fmt.Println("Config: (defaults; no config file found)")
	} else {
		fmt.Printf("Config: %s\n", src)
	}
	fmt.Printf("  Brush: radius %.3f, opacity %.2f, tool %d\n", cfg.Brush.Radius, cfg.Brush.Opacity, cfg.Brush.Tool)
	fmt.Printf("  Projection: %s\n", cfg.Projection.Mode)
	mirrors := stroke.BuildMirrors(cfg.Mirrors.Axes, cfg.Mirrors.ExplicitMatrices())
	fmt.Printf("  Mirrors: %d transform(s)\n", len(mirrors))
	fmt.Println()

	fmt.Println("Cache:")
	path := cachePath(cfg)
	if info, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("  No cache file at %s\n", path)
	} else if err != nil {
		fmt.Printf("  Error: %v\n", err)
	} else {
		fmt.Printf("  Path: %s\n", path)
		fmt.Printf("  Size: %s\n", formatBytes(info.Size()))
		g, err := geo.ReadFile(path)
		if err != nil {
			fmt.Printf("  Error reading cache: %v\n", err)
		} else {
			fmt.Printf("  Prims: %d, points: %d\n", g.NumPrims(), g.NumPoints())
			if maxID, ok := g.DetailI(geo.AttrMaxStrokeID); ok {
				fmt.Printf("  Max stroke id: %d\n", maxID)
			}
		}
	}
	fmt.Println()

	fmt.Println("Journal:")
	switch {
	case !cfg.Journal.Enabled:
		fmt.Println("  Disabled")
	case !journal.Exists(cfg.Journal.Path):
		fmt.Printf("  No journal at %s\n", cfg.Journal.Path)
	default:
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			fmt.Printf("  Error opening journal: %v\n", err)
			break
		}
		fmt.Printf("  Path: %s\n", cfg.Journal.Path)
		fmt.Printf("  Size: %s, entries: %d\n", formatBytes(j.Size()), j.EntryCount())
		entries, err := j.Replay()
		if err != nil {
			fmt.Printf("  Error reading journal: %v\n", err)
		} else {
			unsaved := 0
			for _, e := range entries {
				if e.Type == journal.EntryStrokeCommit {
					unsaved++
				}
			}
			if unsaved > 0 {
				fmt.Printf("  Unsaved commits: %d (run 'hpaint recover')\n", unsaved)
			} else {
				fmt.Println("  Unsaved commits: 0")
			}
		}
		j.Close()
	}
	fmt.Println()

	fmt.Println("Archive:")
	switch {
	case !cfg.Archive.Enabled:
		fmt.Println("  Disabled")
	default:
		if _, err := os.Stat(cfg.Archive.Path); os.IsNotExist(err) {
			fmt.Printf("  No archive at %s\n", cfg.Archive.Path)
			break
		}
		s, err := store.Open(cfg.Archive.Path)
		if err != nil {
			fmt.Printf("  Error opening archive: %v\n", err)
			break
		}
		fmt.Printf("  Path: %s\n", cfg.Archive.Path)
		if n, err := s.CountSessions(); err == nil {
			fmt.Printf("  Sessions: %d\n", n)
		}
		if n, err := s.CountAllCommits(); err == nil {
			fmt.Printf("  Commits: %d\n", n)
		}
		if active, err := s.ActiveSession(); err == nil && active != nil {
			fmt.Printf("  Active session: %d (%s, started %s)\n", active.ID, active.Tool, formatTime(active.StartedAt))
		}
		if last, err := s.LastCommit(); err == nil && last != nil {
			fmt.Printf("  Last commit: stroke %d at %s (%s)\n", last.StrokeID, formatTime(last.CreatedAt), formatBytes(last.ByteSize))
		}
		s.Close()
	}
}

func cmdHistory(session string) {
	cfg := loadConfig()

	if _, err := os.Stat(cfg.Archive.Path); os.IsNotExist(err) {
		fmt.Println("No sessions archived.")
		return
	}

	s, err := store.Open(cfg.Archive.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening archive: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if session != "" {
		id, err := strconv.ParseInt(session, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid session id: %s\n", session)
			os.Exit(1)
		}
		printCommits(s, id)
		return
	}

	sessions, err := s.ListSessions(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions archived.")
		return
	}

	fmt.Println("=== Session History ===")
	fmt.Printf("%-6s %-20s %-20s %-10s %8s\n", "ID", "Started", "Ended", "Tool", "Commits")
	fmt.Println(strings.Repeat("-", 68))

	count := 0
	for _, sess := range sessions {
		if count >= 100 {
			break
		}
		ended := "(active)"
		if sess.EndedAt != nil {
			ended = formatTime(*sess.EndedAt)
		}
		commits, _ := s.CountCommits(sess.ID)
		fmt.Printf("%-6d %-20s %-20s %-10s %8d\n", sess.ID, formatTime(sess.StartedAt), ended, sess.Tool, commits)
		count++
	}

	if len(sessions) > 100 {
		fmt.Printf("\n(showing first 100 of %d sessions)\n", len(sessions))
	}
}

func printCommits(s *store.Store, session int64) {
	sess, err := s.GetSession(session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading session: %v\n", err)
		os.Exit(1)
	}
	if sess == nil {
		fmt.Fprintf(os.Stderr, "No session %d in the archive\n", session)
		os.Exit(1)
	}

	commits, err := s.GetCommits(session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading commits: %v\n", err)
		os.Exit(1)
	}
	if len(commits) == 0 {
		fmt.Printf("Session %d has no commits.\n", session)
		return
	}

	fmt.Printf("=== Session %d Commits ===\n", session)
	fmt.Printf("%-8s %-8s %-8s %-10s %-20s %s\n", "Stroke", "Samples", "Mirrors", "Size", "Committed", "Hash")
	fmt.Println(strings.Repeat("-", 78))

	count := 0
	for _, c := range commits {
		if count >= 100 {
			break
		}
		hash := hex.EncodeToString(c.ContentHash[:8]) + "..."
		fmt.Printf("%-8d %-8d %-8d %-10s %-20s %s\n", c.StrokeID, c.SampleCount, c.MirrorCount, formatBytes(c.ByteSize), formatTime(c.CreatedAt), hash)
		count++
	}

	if len(commits) > 100 {
		fmt.Printf("\n(showing first 100 of %d commits)\n", len(commits))
	}
}

func cmdCache(sub string, args []string) {
	cfg := loadConfig()
	path := cachePath(cfg)

	switch sub {
	case "info":
		cmdCacheInfo(path)
	case "save":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: hpaint cache save <file>")
			os.Exit(1)
		}
		cmdCacheSave(path, args[0])
	case "load":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: hpaint cache load <file>")
			os.Exit(1)
		}
		cmdCacheLoad(path, args[0])
	case "swap":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: hpaint cache swap <file> [pattern]")
			os.Exit(1)
		}
		pattern := ""
		if len(args) >= 2 {
			pattern = args[1]
		}
		cmdCacheSwap(path, args[0], pattern)
	case "clear":
		pattern := ""
		if len(args) >= 1 {
			pattern = args[0]
		}
		cmdCacheClear(cfg, path, pattern)
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache command: %s\n", sub)
		fmt.Fprintln(os.Stderr, "Usage: hpaint cache <save|load|swap|clear|info> [args]")
		os.Exit(1)
	}
}

func cmdCacheInfo(path string) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Printf("No cache file at %s\n", path)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	g, err := geo.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Cache Info ===")
	fmt.Printf("Path:          %s\n", path)
	fmt.Printf("Size:          %s\n", formatBytes(info.Size()))
	fmt.Printf("Prims:         %d\n", g.NumPrims())
	fmt.Printf("Points:        %d\n", g.NumPoints())
	fmt.Printf("Groups:        %d\n", len(g.GroupNames()))
	if maxID, ok := g.DetailI(geo.AttrMaxStrokeID); ok {
		fmt.Printf("Max stroke id: %d\n", maxID)
	}
}

func cmdCacheSave(path, src string) {
	g, err := geo.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", src, err)
		os.Exit(1)
	}
	if g.NumPrims() == 0 {
		fmt.Printf("%s holds no strokes; cache unchanged.\n", src)
		return
	}

	host := capture.NewMemHost()
	host.SetBuffer(g)
	if maxID, ok := g.DetailI(geo.AttrMaxStrokeID); ok {
		host.SetScalar(stroke.ParamStrokeNum, float32(maxID))
	}

	c := cache.New(path, nil)
	merged := g.NumPrims()
	if err := c.Save(host); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Merged %d prims from %s into %s (%d prims total)\n", merged, src, path, c.Disk().NumPrims())
}

func cmdCacheLoad(path, output string) {
	host := capture.NewMemHost()
	c := cache.New(path, nil)
	if err := c.Load(host); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	buf := host.Buffer()
	if err := geo.WriteFile(buf, output); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d prims from %s to %s\n", buf.NumPrims(), path, output)
}

func cmdCacheSwap(path, output, pattern string) {
	declined := false
	c := cache.New(path, func(prompt string) bool {
		ok := confirm(prompt)
		declined = !ok
		return ok
	})

	host := capture.NewMemHost()
	if err := c.Swap(host, pattern, *inverse); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if declined {
		fmt.Println("Aborted.")
		return
	}

	buf := host.Buffer()
	if buf == nil || buf.NumPrims() == 0 {
		fmt.Println("No strokes matched; cache unchanged.")
		return
	}

	if err := geo.WriteFile(buf, output); err != nil {
		// The cache file was already rewritten without the taken
		// strokes; merge them back rather than lose them.
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		if saveErr := c.Save(host); saveErr != nil {
			fmt.Fprintf(os.Stderr, "Error restoring cache: %v\n", saveErr)
		} else {
			fmt.Fprintln(os.Stderr, "Strokes merged back into the cache.")
		}
		os.Exit(1)
	}

	fmt.Printf("Moved %d prims from %s to %s (%d prims remain)\n", buf.NumPrims(), path, output, c.Disk().NumPrims())
}

func cmdCacheClear(cfg *config.Config, path, pattern string) {
	declined := false
	c := cache.New(path, func(prompt string) bool {
		ok := confirm(prompt)
		declined = !ok
		return ok
	})

	host := capture.NewMemHost()
	if err := c.ClearFile(host, pattern); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if declined {
		fmt.Println("Aborted.")
		return
	}

	if pattern == "" {
		fmt.Printf("Cleared %s\n", path)
	} else {
		fmt.Printf("Cleared groups matching %q in %s (%d prims remain)\n", pattern, path, c.Disk().NumPrims())
	}

	// A full clear of the configured cache discards its strokes; mark
	// the journal so recover does not resurrect them. Pattern clears
	// stay unmarked since the journal cannot split a stroke record.
	if pattern != "" || path != cachePath(cfg) || !cfg.Journal.Enabled || !journal.Exists(cfg.Journal.Path) {
		return
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal not marked cleared: %v\n", err)
		return
	}
	defer j.Close()
	if err := j.AppendClear(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal not marked cleared: %v\n", err)
	}
}

func cmdRecover(output string) {
	cfg := loadConfig()

	if cfg.Journal.Path == "" {
		fmt.Fprintln(os.Stderr, "No journal path configured")
		os.Exit(1)
	}
	if !journal.Exists(cfg.Journal.Path) {
		fmt.Printf("No journal at %s; nothing to recover.\n", cfg.Journal.Path)
		return
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	entries, err := j.Replay()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}

	// Recovered strokes take the configured brush parameters; the
	// journal records samples, not slot parameters.
	shared := stroke.Shared{
		Radius:  float32(cfg.Brush.Radius),
		Opacity: float32(cfg.Brush.Opacity),
		Tool:    int32(cfg.Brush.Tool),
		Color:   cfg.Brush.BrushColor(),
	}

	g := geo.New()
	var maxID int32
	strokes, samples, skipped := 0, 0, 0
	for _, e := range entries {
		if e.Type != journal.EntryStrokeCommit {
			continue
		}
		id, data, err := journal.StrokePayload(e)
		if err != nil {
			skipped++
			continue
		}
		rec, err := strokefmt.DecodeRecord(data)
		if err != nil {
			skipped++
			continue
		}
		g.Merge(stroke.StreamsGeometry(rec.Streams, id, shared, cfg.Brush.PressureEnabled))
		if id > maxID {
			maxID = id
		}
		strokes++
		samples += int(rec.Count) * len(rec.Streams)
	}

	if strokes == 0 {
		fmt.Println("Journal is clean; nothing to recover.")
		return
	}
	g.RaiseDetailI(geo.AttrMaxStrokeID, maxID)

	if output == "" {
		output = cachePath(cfg)
	}

	host := capture.NewMemHost()
	host.SetBuffer(g)
	host.SetScalar(stroke.ParamStrokeNum, float32(maxID))
	c := cache.New(output, nil)
	if err := c.Save(host); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving recovered strokes: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Recovered %d strokes (%d samples) into %s\n", strokes, samples, output)
	if skipped > 0 {
		fmt.Printf("Skipped %d undecodable entries\n", skipped)
	}

	// Recovery into the configured cache is a save; mark it so the next
	// recover does not duplicate the strokes.
	if output == cachePath(cfg) {
		if err := j.AppendSave(output); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal not marked saved: %v\n", err)
			return
		}
		if err := j.Truncate(j.LastSequence()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal not truncated: %v\n", err)
		}
	} else {
		fmt.Println("Journal left intact (recovered to a side file).")
	}
}

func cmdConfig(sub string) {
	switch sub {
	case "show":
		cfg := loadConfig()
		src := *configPath
		if src == "" {
			src = config.FindConfigFile()
		}
		if src == "" {
			fmt.Println("# defaults; no config file found")
		} else {
			fmt.Printf("# %s\n", src)
		}
		if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding config: %v\n", err)
			os.Exit(1)
		}
	case "init":
		path := *configPath
		if path == "" {
			path = config.ConfigPath()
		}
		cfg, created, err := config.LoadOrCreate(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if created {
			fmt.Printf("Wrote default config to %s\n", path)
		} else {
			fmt.Printf("Config already exists at %s (version %d)\n", path, cfg.Version)
		}
	case "migrate":
		path := *configPath
		if path == "" {
			path = config.FindConfigFile()
		}
		if path == "" {
			fmt.Fprintln(os.Stderr, "No config file found")
			os.Exit(1)
		}
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		result, err := config.MigrateConfig(cfg, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error migrating config: %v\n", err)
			os.Exit(1)
		}
		if result == nil {
			fmt.Printf("Config is already at version %d.\n", cfg.Version)
			return
		}
		if err := config.SaveConfig(cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		if err := config.SaveMigrationHistory(result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: migration history not saved: %v\n", err)
		}
		fmt.Printf("Migrated config from version %d to %d\n", result.FromVersion, result.ToVersion)
		if result.Backup != "" {
			fmt.Printf("Backup: %s\n", result.Backup)
		}
		if len(result.Changes) > 0 {
			fmt.Println("Changes:")
			for _, c := range result.Changes {
				fmt.Printf("  - %s\n", c)
			}
		}
		if len(result.Warnings) > 0 {
			fmt.Println("Warnings:")
			for _, w := range result.Warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", sub)
		fmt.Fprintln(os.Stderr, "Usage: hpaint config <show|init|migrate>")
		os.Exit(1)
	}
}

func cmdRecord(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	rec, err := strokefmt.DecodeRecord(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding record: %v\n", err)
		os.Exit(1)
	}

	sum := blake2b.Sum256(data)

	fmt.Println("=== Stroke Record ===")
	fmt.Printf("File:         %s\n", path)
	fmt.Printf("Size:         %s\n", formatBytes(int64(len(data))))
	fmt.Printf("Version:      %d\n", rec.Version)
	fmt.Printf("Samples:      %d per stream\n", rec.Count)
	fmt.Printf("Streams:      %d\n", len(rec.Streams))
	fmt.Printf("Content hash: %s...\n", hex.EncodeToString(sum[:16]))

	if len(rec.Streams) == 0 || len(rec.Streams[0]) == 0 {
		return
	}

	fmt.Println()
	fmt.Printf("%-8s %-9s %-9s %-4s %s\n", "Sample", "Time", "Pressure", "Hit", "Position")
	fmt.Println(strings.Repeat("-", 64))

	count := 0
	for i, s := range rec.Streams[0] {
		if count >= 10 {
			break
		}
		hit := "no"
		if s.Hit {
			hit = "yes"
		}
		fmt.Printf("%-8d %-9.3f %-9.2f %-4s (%.3f, %.3f, %.3f)\n", i, s.Time, s.Pressure, hit, s.ProjPos.X, s.ProjPos.Y, s.ProjPos.Z)
		count++
	}

	if len(rec.Streams[0]) > 10 {
		fmt.Printf("\n(showing first 10 of %d samples)\n", len(rec.Streams[0]))
	}
}

// Helper functions

func formatTime(sec int64) string {
	return time.Unix(sec, 0).Format("2006-01-02 15:04:05")
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Package cache moves stroke geometry between the live buffer and its
// disk file: save, load, partial check-out and the destructive clears.
// Methods are not synchronized; serialize calls with the engine loop.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"hpaint/internal/geo"
	"hpaint/internal/stroke"
)

// Host is the engine surface the cache operates on.
type Host interface {
	GetScalar(name string) float32
	SetScalar(name string, value float32)
	Buffer() *geo.Geometry
	SetBuffer(g *geo.Geometry)
}

// ConfirmFunc asks before a destructive operation. Returning false
// aborts with no mutation.
type ConfirmFunc func(prompt string) bool

// Cache binds a disk path to the operations on it and keeps a read-only
// copy of the file's last known contents for display.
type Cache struct {
	path    string
	confirm ConfirmFunc
	disk    *geo.Geometry
}

// New builds a cache over path. A nil confirm auto-approves the
// destructive operations.
func New(path string, confirm ConfirmFunc) *Cache {
	return &Cache{path: path, confirm: confirm, disk: geo.New()}
}

// Path returns the bound disk path.
func (c *Cache) Path() string { return c.path }

// Disk returns the last loaded copy of the file's contents. Callers
// must not mutate it.
func (c *Cache) Disk() *geo.Geometry { return c.disk }

// Save merges the live buffer into the disk file and clears the buffer.
// An existing file keeps its strokes; its max stroke id is raised to the
// host's counter. An empty buffer saves nothing.
func (c *Cache) Save(host Host) error {
	buf := host.Buffer()
	if buf == nil || buf.NumPrims() == 0 {
		return nil
	}

	if _, err := os.Stat(c.path); err == nil {
		disk, err := geo.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("merging stroke cache: %w", err)
		}
		disk.Merge(buf)
		disk.RaiseDetailI(geo.AttrMaxStrokeID, int32(host.GetScalar(stroke.ParamStrokeNum)))
		if err := geo.WriteFile(disk, c.path); err != nil {
			return fmt.Errorf("saving stroke cache: %w", err)
		}
	} else {
		if err := geo.WriteFile(buf, c.path); err != nil {
			return fmt.Errorf("saving stroke cache: %w", err)
		}
	}

	host.SetBuffer(geo.New())
	return c.Refresh(host)
}

// Load replaces the live buffer with the file's contents and raises the
// host's stroke counter to the file's max stroke id.
func (c *Cache) Load(host Host) error {
	disk, err := geo.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("loading stroke cache: %w", err)
	}
	host.SetBuffer(disk)
	c.disk = disk.Clone()
	c.raiseCounter(host, disk)
	return nil
}

// Refresh rereads the disk copy after an external rewrite. The host's
// stroke counter is raised to the file's max stroke id, never lowered,
// and the buffer is left alone. A missing file empties the disk copy.
func (c *Cache) Refresh(host Host) error {
	disk, err := geo.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.disk = geo.New()
			return nil
		}
		return fmt.Errorf("refreshing stroke cache: %w", err)
	}
	c.disk = disk
	c.raiseCounter(host, disk)
	return nil
}

func (c *Cache) raiseCounter(host Host, disk *geo.Geometry) {
	max, ok := disk.DetailI(geo.AttrMaxStrokeID)
	if ok && float32(max) > host.GetScalar(stroke.ParamStrokeNum) {
		host.SetScalar(stroke.ParamStrokeNum, float32(max))
	}
}

// Swap moves strokes from the disk file into the live buffer, removing
// them from the disk copy. A pattern selects groups to move; inverse
// moves the complement instead. An empty pattern moves the whole file.
// The disk file is rewritten before the buffer is touched, so a failed
// write leaves the buffer unchanged.
func (c *Cache) Swap(host Host, pattern string, inverse bool) error {
	var prompt string
	if pattern != "" {
		prompt = fmt.Sprintf("Swap disk file group into stroke buffer?\nThis will remove any strokes in your current disk file (matching the group pattern %s) and place them into the stroke buffer.", pattern)
	} else {
		prompt = "Swap disk file into stroke buffer?\nThis will remove any strokes in your current disk file and place them into the stroke buffer."
	}
	if !c.approved(prompt) {
		return nil
	}

	disk, err := geo.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("swapping stroke cache: %w", err)
	}

	take := disk
	keep := geo.New()
	if pattern != "" {
		names := disk.FindGroups(pattern)
		if len(names) == 0 {
			return nil
		}
		take = disk.Clone()
		take.IsolateGroups(names, inverse)
		keep = disk
		keep.IsolateGroups(names, !inverse)
	}

	if err := geo.WriteFile(keep, c.path); err != nil {
		return fmt.Errorf("swapping stroke cache: %w", err)
	}

	buf := host.Buffer()
	if buf == nil {
		buf = geo.New()
	}
	buf.Merge(take)
	host.SetBuffer(buf)
	c.disk = keep.Clone()
	return nil
}

// Clear empties the live buffer, or with a pattern deletes only the
// matching groups from it.
func (c *Cache) Clear(host Host, pattern string) error {
	var prompt string
	if pattern != "" {
		prompt = fmt.Sprintf("Clear strokes matching the group pattern %s in the stroke buffer?", pattern)
	} else {
		prompt = "Clear the stroke buffer?"
	}
	if !c.approved(prompt) {
		return nil
	}

	if pattern == "" {
		host.SetBuffer(geo.New())
		return nil
	}
	buf := host.Buffer()
	if buf == nil {
		return nil
	}
	buf.IsolateGroups(buf.FindGroups(pattern), true)
	host.SetBuffer(buf)
	return nil
}

// ClearFile overwrites the disk file with empty geometry, or with a
// pattern rewrites it with the matching groups removed. A missing file
// is left missing.
func (c *Cache) ClearFile(host Host, pattern string) error {
	var prompt string
	if pattern != "" {
		prompt = fmt.Sprintf("Clear strokes matching the group pattern %s on disk?", pattern)
	} else {
		prompt = "Clear the stroke file cache on disk?"
	}
	if !c.approved(prompt) {
		return nil
	}

	if _, err := os.Stat(c.path); err != nil {
		return nil
	}

	out := geo.New()
	if pattern != "" {
		disk, err := geo.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("clearing stroke cache: %w", err)
		}
		disk.IsolateGroups(disk.FindGroups(pattern), true)
		out = disk
	}
	if err := geo.WriteFile(out, c.path); err != nil {
		return fmt.Errorf("clearing stroke cache: %w", err)
	}
	return c.Refresh(host)
}

// Delete removes the disk file. The file must decode as stroke
// geometry first; anything else is refused.
func (c *Cache) Delete() error {
	if !c.approved("Delete the stroke file cache on disk?") {
		return nil
	}

	if _, err := os.Stat(c.path); err != nil {
		return nil
	}
	if _, err := geo.ReadFile(c.path); err != nil {
		return fmt.Errorf("refusing to delete %s: %w", c.path, err)
	}
	if err := os.Remove(c.path); err != nil {
		return fmt.Errorf("deleting stroke cache: %w", err)
	}
	c.disk = geo.New()
	return nil
}

func (c *Cache) approved(prompt string) bool {
	return c.confirm == nil || c.confirm(prompt)
}

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SnapDir picks which neighboring frame a missing frame snaps to.
type SnapDir int

const (
	SnapPrev SnapDir = iota
	SnapNext
)

var frameVerb = regexp.MustCompile(`%0?\d*d`)

// SnapFramePath resolves a frame-numbered cache path. The pattern holds
// one printf-style integer verb, e.g. "strokes.%04d.geo". When the file
// for frame exists its path is returned directly; otherwise the
// pattern's siblings on disk are collected and the nearest one before or
// after the frame is returned. With no siblings at all the missing
// path comes back unchanged.
func SnapFramePath(pattern string, frame int, dir SnapDir) string {
	if !frameVerb.MatchString(pattern) {
		return pattern
	}
	current := fmt.Sprintf(pattern, frame)
	if _, err := os.Stat(current); err == nil {
		return current
	}

	matches, err := filepath.Glob(frameVerb.ReplaceAllString(pattern, "*"))
	if err != nil || len(matches) == 0 {
		return current
	}

	candidates := append(matches, current)
	sort.Slice(candidates, func(i, j int) bool {
		return NaturalLess(candidates[i], candidates[j])
	})

	idx := 0
	for i, p := range candidates {
		if p == current {
			idx = i
			break
		}
	}
	switch {
	case dir == SnapPrev && idx > 0:
		return candidates[idx-1]
	case dir == SnapNext && idx+1 < len(candidates):
		return candidates[idx+1]
	}
	return current
}

// NaturalLess orders strings the way a file browser does: runs of
// digits compare numerically, everything else case-insensitively, so
// frame 2 sorts before frame 10.
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		ca, cb := lowerByte(a[i]), lowerByte(b[j])
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

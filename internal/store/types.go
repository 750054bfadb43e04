// Package store provides SQLite-based session archiving for hpaint.
package store

// Session represents one painting session.
type Session struct {
	ID        int64
	StartedAt int64
	EndedAt   *int64
	Tool      string
}

// Commit represents one stroke committed into the buffer during a
// session.
type Commit struct {
	Session     int64
	StrokeID    int32
	SampleCount int32
	MirrorCount int32
	ByteSize    int64
	ContentHash [32]byte
	CreatedAt   int64
}

package blockdev

import "io"

// PartitionView presents a clamped [start, start+size) window onto an
// underlying io.ReadWriteSeeker, translating relative offsets to absolute
// ones on every operation rather than caching its own position — the
// underlying device remains the single source of truth for where the
// head currently sits.
type PartitionView struct {
	underlying io.ReadWriteSeeker
	start      int64
	size       int64
}

// NewPartitionView wraps underlying, restricting visible positions to
// [0, size) mapped onto [start, start+size) in the underlying device.
func NewPartitionView(underlying io.ReadWriteSeeker, start, size int64) (*PartitionView, error) {
	if _, err := underlying.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	return &PartitionView{underlying: underlying, start: start, size: size}, nil
}

// currentRelPos queries the underlying device's absolute position and
// reports it relative to the partition's start.
func (p *PartitionView) currentRelPos() (int64, error) {
	abs, err := p.underlying.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return abs - p.start, nil
}

func (p *PartitionView) clampRel(rel int64) int64 {
	if rel < 0 {
		return 0
	}
	if rel > p.size {
		return p.size
	}
	return rel
}

// Read reads within the partition's bounds, never crossing into the
// region beyond p.size.
func (p *PartitionView) Read(buf []byte) (int, error) {
	rel, err := p.currentRelPos()
	if err != nil {
		return 0, err
	}
	if rel >= p.size {
		return 0, io.EOF
	}
	if remaining := p.size - rel; int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	return p.underlying.Read(buf)
}

// Write writes within the partition's bounds, truncating any write that
// would cross the partition end.
func (p *PartitionView) Write(buf []byte) (int, error) {
	rel, err := p.currentRelPos()
	if err != nil {
		return 0, err
	}
	if rel >= p.size {
		return 0, io.ErrShortWrite
	}
	if remaining := p.size - rel; int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	return p.underlying.Write(buf)
}

// Seek seeks relative to the partition's start, clamping the requested
// position to [0, size] before translating it to an absolute offset on
// the underlying device.
func (p *PartitionView) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekEnd:
		base = p.size
	case io.SeekCurrent:
		rel, err := p.currentRelPos()
		if err != nil {
			return 0, err
		}
		base = rel
	default:
		return 0, io.ErrNoProgress
	}

	rel := p.clampRel(base + offset)
	abs, err := p.underlying.Seek(p.start+rel, io.SeekStart)
	if err != nil {
		return 0, err
	}
	return abs - p.start, nil
}

package media

import (
	"context"
	"math"

	"go.uber.org/zap"
)

const (
	// DefaultFrameRate is the documented fallback when every probing
	// strategy fails. Zero duration and resolution are explicit "unknown"
	// sentinels, not errors.
	DefaultFrameRate = 30.0
	DefaultFormat    = "mp4"
)

// Metadata describes a video container as far as probing could determine.
type Metadata struct {
	Duration   float64
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
	Format     string

	// Defaulted marks values that came from the fallback rather than an
	// actual probe, so they can be corrected later.
	Defaulted bool
}

// Complete reports whether the metadata carries enough signal to be used
// as-is.
func (m *Metadata) Complete() bool {
	return m != nil && m.FrameRate > 0 && m.Duration > 0 && m.Width > 0 && m.Height > 0
}

// Prober is one strategy for reading container metadata from a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
}

// Coordinator runs probers in order and falls back to documented defaults.
// Container and codec support differs between strategies, so a failure of
// one prober only means the next gets a turn; asset creation is never
// blocked on metadata.
type Coordinator struct {
	probers []Prober
	logger  *zap.Logger
}

func NewCoordinator(logger *zap.Logger, probers ...Prober) *Coordinator {
	return &Coordinator{probers: probers, logger: logger}
}

// Extract runs the fallback chain. hint, when non-nil, is metadata observed
// by the client's own container probe and is trusted first if complete.
// path, when non-empty, is a local file the configured probers can inspect.
// The returned metadata is never nil and Extract never fails.
func (c *Coordinator) Extract(ctx context.Context, path string, hint *Metadata) *Metadata {
	if hint.Complete() {
		return finalize(hint)
	}

	if path != "" {
		for _, p := range c.probers {
			md, err := p.Probe(ctx, path)
			if err != nil {
				c.logger.Warn("metadata probe failed, trying next strategy",
					zap.String("path", path),
					zap.Error(err))
				continue
			}
			if md.Complete() {
				return finalize(md)
			}
		}
	}

	c.logger.Warn("all metadata probes failed, using defaults",
		zap.String("path", path))

	return &Metadata{
		FrameRate: DefaultFrameRate,
		Format:    DefaultFormat,
		Defaulted: true,
	}
}

func finalize(md *Metadata) *Metadata {
	out := *md
	out.FrameCount = FrameCount(out.Duration, out.FrameRate)
	if out.Format == "" {
		out.Format = DefaultFormat
	}
	return &out
}

// FrameCount derives the frame count from duration and rate; zero when
// either is unknown.
func FrameCount(duration, frameRate float64) int {
	if duration <= 0 || frameRate <= 0 {
		return 0
	}
	return int(math.Round(duration * frameRate))
}

// Package media inspects video files with ffprobe.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrFFprobeMissing is returned when ffprobe is not installed.
var ErrFFprobeMissing = errors.New("ffprobe not found in PATH")

// DefaultTolerance is the duration difference accepted by Prober.Verify.
const DefaultTolerance = 500 * time.Millisecond

// VideoInfo holds the properties checked after a swap.
type VideoInfo struct {
	Duration time.Duration
	Width    int
	Height   int
	Frames   int
}

// Prober runs ffprobe. The zero value looks ffprobe up in PATH.
type Prober struct {
	Path      string
	Tolerance time.Duration
}

// NewProber returns a prober bound to the ffprobe binary in PATH.
func NewProber() (*Prober, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, ErrFFprobeMissing
	}
	log.Debug().Str("path", path).Msg("ffprobe found")
	return &Prober{Path: path, Tolerance: DefaultTolerance}, nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
		NbFrames  string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe reads the first video stream of the file at path.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	bin := p.Path
	if bin == "" {
		bin = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, bin, //nolint:gosec // fixed binary, path from staging
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrFFprobeMissing
		}
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbeOutput(out)
}

// ParseProbeOutput decodes ffprobe JSON output.
func ParseProbeOutput(data []byte) (*VideoInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	found := false
	for _, s := range po.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		info.Width = s.Width
		info.Height = s.Height
		if n, err := strconv.Atoi(s.NbFrames); err == nil {
			info.Frames = n
		}
		if d, ok := parseSeconds(s.Duration); ok {
			info.Duration = d
		}
		break
	}
	if !found {
		return nil, errors.New("no video stream")
	}

	// Containers often carry the authoritative duration.
	if d, ok := parseSeconds(po.Format.Duration); ok {
		info.Duration = d
	}
	return info, nil
}

func parseSeconds(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

// Verify checks that output has the same duration as input, within the
// prober's tolerance.
func (p *Prober) Verify(ctx context.Context, input, output string) error {
	in, err := p.Probe(ctx, input)
	if err != nil {
		return err
	}
	out, err := p.Probe(ctx, output)
	if err != nil {
		return err
	}
	return CompareDurations(in, out, p.Tolerance)
}

// CompareDurations fails when the two durations differ by more than tolerance.
func CompareDurations(in, out *VideoInfo, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	diff := in.Duration - out.Duration
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		return fmt.Errorf("duration mismatch: input %s, output %s", in.Duration, out.Duration)
	}
	return nil
}

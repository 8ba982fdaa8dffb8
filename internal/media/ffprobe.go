package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFProbe shells out to ffprobe and parses its JSON output. It is the
// server-side fallback for containers the client-side probe cannot read.
type FFProbe struct {
	binPath string
	timeout time.Duration
}

func NewFFProbe(binPath string, timeout time.Duration) *FFProbe {
	return &FFProbe{binPath: binPath, timeout: timeout}
}

type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

func (f *FFProbe) Probe(ctx context.Context, path string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, _ := strconv.ParseFloat(parsed.Format.Duration, 64)

	md := &Metadata{Duration: duration}

	for _, stream := range parsed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		md.Width = stream.Width
		md.Height = stream.Height
		md.FrameRate = parseFrameRate(stream.RFrameRate)
		if md.FrameRate <= 0 {
			md.FrameRate = parseFrameRate(stream.AvgFrameRate)
		}
		break
	}

	if md.Width == 0 && md.Height == 0 {
		return nil, fmt.Errorf("no video stream found in %s", path)
	}

	if name := parsed.Format.FormatName; name != "" {
		md.Format = strings.SplitN(name, ",", 2)[0]
	}

	return md, nil
}

// parseFrameRate handles ffprobe's rational notation ("30000/1001") as well
// as plain decimals.
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}

	rate, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return rate
}

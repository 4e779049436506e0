// Package probe extracts codec/bitrate/resolution information from a media
// file via the external ffprobe binary and decides how a client should be
// served it.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

type VideoStream struct {
	Index      int     `json:"index"`
	Codec      string  `json:"codec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	BitrateKbp *int    `json:"bitrate_kbps,omitempty"`
	Framerate  *float64 `json:"framerate,omitempty"`
}

type AudioStream struct {
	Index     int    `json:"index"`
	Codec     string `json:"codec"`
	Channels  int    `json:"channels"`
	Language  string `json:"language,omitempty"`
	Title     string `json:"title,omitempty"`
	IsDefault bool   `json:"is_default"`
}

type SubtitleStream struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	IsForced bool   `json:"is_forced"`
	IsDefault bool  `json:"is_default"`
}

type MediaInfo struct {
	Container    string           `json:"container"`
	DurationSecs float64          `json:"duration_secs"`
	BitrateKbps  *int             `json:"bitrate_kbps,omitempty"`
	Video        *VideoStream     `json:"video,omitempty"`
	Audio        []AudioStream    `json:"audio"`
	Subtitles    []SubtitleStream `json:"subtitles"`
}

// rawProbeOutput mirrors the shape ffprobe emits with
// -print_format json -show_format -show_streams.
type rawProbeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []rawStream `json:"streams"`
}

type rawStream struct {
	Index       int    `json:"index"`
	CodecType   string `json:"codec_type"`
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BitRate     string `json:"bit_rate"`
	RFrameRate  string `json:"r_frame_rate"`
	Channels    int    `json:"channels"`
	Disposition struct {
		Default int `json:"default"`
		Forced  int `json:"forced"`
	} `json:"disposition"`
	Tags struct {
		Language string `json:"language"`
		Title    string `json:"title"`
	} `json:"tags"`
}

// Prober invokes the external ffprobe binary, its calls wrapped in a
// circuit breaker so repeated probe failures against a mounted-but-
// unresponsive network share trip instead of hanging every request.
type Prober struct {
	ffprobePath string
	breaker     *gobreaker.CircuitBreaker[*MediaInfo]
}

func NewProber(ffprobePath string) *Prober {
	settings := gobreaker.Settings{
		Name:        "ffprobe",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Prober{
		ffprobePath: ffprobePath,
		breaker:     gobreaker.NewCircuitBreaker[*MediaInfo](settings),
	}
}

func (p *Prober) Probe(ctx context.Context, filePath string) (*MediaInfo, error) {
	return p.breaker.Execute(func() (*MediaInfo, error) {
		return probeOnce(ctx, p.ffprobePath, filePath)
	})
}

func probeOnce(ctx context.Context, ffprobePath, filePath string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("probe: ffprobe failed: %w", err)
	}
	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(raw []byte) (*MediaInfo, error) {
	var out rawProbeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("probe: parse output: %w", err)
	}

	info := &MediaInfo{Container: out.Format.FormatName}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.DurationSecs = d
	}
	if b, err := strconv.Atoi(out.Format.BitRate); err == nil {
		kbps := b / 1000
		info.BitrateKbps = &kbps
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.Video != nil {
				continue // first video stream only
			}
			v := &VideoStream{Index: s.Index, Codec: s.CodecName, Width: s.Width, Height: s.Height}
			if b, err := strconv.Atoi(s.BitRate); err == nil {
				kbps := b / 1000
				v.BitrateKbp = &kbps
			}
			if fr, ok := parseFraction(s.RFrameRate); ok {
				v.Framerate = &fr
			}
			info.Video = v
		case "audio":
			info.Audio = append(info.Audio, AudioStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Channels:  s.Channels,
				Language:  s.Tags.Language,
				Title:     s.Tags.Title,
				IsDefault: s.Disposition.Default != 0,
			})
		case "subtitle":
			info.Subtitles = append(info.Subtitles, SubtitleStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Language:  s.Tags.Language,
				Title:     s.Tags.Title,
				IsForced:  s.Disposition.Forced != 0,
				IsDefault: s.Disposition.Default != 0,
			})
		}
	}

	return info, nil
}

// parseFraction evaluates a ffprobe "N/D" framerate string as floating
// point division, rejecting a zero denominator.
func parseFraction(s string) (float64, bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, false
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, false
	}
	return num / den, true
}

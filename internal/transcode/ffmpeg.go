package transcode

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// spawnFFmpeg builds the full argument list derived from the hw-accel
// choice and starts the child process, redirecting stderr to ffmpeg.log in
// the session directory.
func spawnFFmpeg(cfg Config, inputPath, outputDir string, startSeconds float64, videoCodecOverride string) (*exec.Cmd, error) {
	args := []string{"-hide_banner", "-y"}
	args = append(args, hwAccelInputArgs(cfg.HWAccel)...)

	if startSeconds > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startSeconds))
	}
	args = append(args, "-i", inputPath)

	args = append(args, "-c:v", videoCodec(cfg.HWAccel, videoCodecOverride))
	if videoCodecOverride == "" && cfg.HWAccel == HWAccelNone {
		args = append(args, "-preset", "veryfast", "-crf", "23")
	}

	args = append(args, "-c:a", "aac", "-b:a", "128k")

	segmentPattern := filepath.Join(outputDir, "seg_%05d.ts")
	masterPath := filepath.Join(outputDir, "master.m3u8")
	segmentSecs := cfg.SegmentSecs
	if segmentSecs <= 0 {
		segmentSecs = 6
	}
	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", segmentSecs),
		"-hls_playlist_type", "event",
		"-hls_segment_filename", segmentPattern,
		"-hls_flags", "independent_segments",
		masterPath,
	)

	cmd := exec.Command(cfg.FFmpegPath, args...)

	logFile, err := os.Create(filepath.Join(outputDir, "ffmpeg.log"))
	if err != nil {
		return nil, fmt.Errorf("transcode: create ffmpeg.log: %w", err)
	}
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}
	return cmd, nil
}

func hwAccelInputArgs(accel HWAccel) []string {
	switch accel {
	case HWAccelNvenc:
		return []string{"-hwaccel", "cuda"}
	case HWAccelVaapi:
		return []string{"-hwaccel", "vaapi", "-hwaccel_output_format", "vaapi", "-vaapi_device", "/dev/dri/renderD128"}
	case HWAccelQsv:
		return []string{"-hwaccel", "qsv"}
	case HWAccelVideoToolbox:
		return []string{"-hwaccel", "videotoolbox"}
	default:
		return nil
	}
}

// videoCodec resolves the encoder name: explicit override wins, else the
// hw-accel's native encoder, else software libx264.
func videoCodec(accel HWAccel, override string) string {
	if override != "" {
		return override
	}
	switch accel {
	case HWAccelNvenc:
		return "h264_nvenc"
	case HWAccelVaapi:
		return "h264_vaapi"
	case HWAccelQsv:
		return "h264_qsv"
	case HWAccelVideoToolbox:
		return "h264_videotoolbox"
	default:
		return "libx264"
	}
}

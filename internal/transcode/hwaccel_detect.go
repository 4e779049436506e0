package transcode

import (
	"os/exec"
	"strings"
)

// DetectHWAccel probes the local ffmpeg build's encoder list and returns
// the best available hardware-accelerated choice, falling back to none.
// Carried from the teacher's hw-accel auto-detection, generalized to the
// HWAccel enum this package uses.
func DetectHWAccel(ffmpegPath string) HWAccel {
	out, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return HWAccelNone
	}
	listing := string(out)

	candidates := []struct {
		accel HWAccel
		name  string
	}{
		{HWAccelNvenc, "h264_nvenc"},
		{HWAccelVaapi, "h264_vaapi"},
		{HWAccelQsv, "h264_qsv"},
		{HWAccelVideoToolbox, "h264_videotoolbox"},
	}

	for _, c := range candidates {
		if strings.Contains(listing, c.name) {
			return c.accel
		}
	}
	return HWAccelNone
}

package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_DirectPlay(t *testing.T) {
	media := &MediaInfo{
		Container: "mp4",
		Video:     &VideoStream{Codec: "h264", Width: 1920, Height: 1080},
		Audio:     []AudioStream{{Codec: "aac"}},
	}
	d := Decide(media, DefaultClientCaps())
	assert.Equal(t, DirectPlay, d.Method)
	assert.Empty(t, d.Reasons)
	assert.False(t, d.TranscodeVideo)
	assert.False(t, d.TranscodeAudio)
}

func TestDecide_RemuxWhenContainerUnsupported(t *testing.T) {
	media := &MediaInfo{
		Container: "avi",
		Video:     &VideoStream{Codec: "h264", Width: 1280, Height: 720},
		Audio:     []AudioStream{{Codec: "aac"}},
	}
	d := Decide(media, DefaultClientCaps())
	assert.Equal(t, Remux, d.Method)
	assert.Contains(t, d.Reasons, ContainerNotSupported)
	assert.False(t, d.TranscodeVideo)
	assert.False(t, d.TranscodeAudio)
}

func TestDecide_TranscodeWhenVideoCodecUnsupported(t *testing.T) {
	media := &MediaInfo{
		Container: "mp4",
		Video:     &VideoStream{Codec: "mpeg2video", Width: 1280, Height: 720},
		Audio:     []AudioStream{{Codec: "aac"}},
	}
	d := Decide(media, DefaultClientCaps())
	assert.Equal(t, Transcode, d.Method)
	assert.Contains(t, d.Reasons, VideoCodecNotSupported)
	assert.True(t, d.TranscodeVideo)
}

func TestDecide_ResolutionCapTriggersTranscode(t *testing.T) {
	maxWidth := 1280
	caps := DefaultClientCaps()
	caps.MaxWidth = &maxWidth
	media := &MediaInfo{
		Container: "mp4",
		Video:     &VideoStream{Codec: "h264", Width: 3840, Height: 2160},
		Audio:     []AudioStream{{Codec: "aac"}},
	}
	d := Decide(media, caps)
	assert.Equal(t, Transcode, d.Method)
	assert.Contains(t, d.Reasons, VideoResolutionTooHigh)
}

func TestDecide_BitrateCapTriggersTranscode(t *testing.T) {
	maxBitrate := 4000
	bitrate := 8000
	caps := DefaultClientCaps()
	caps.MaxBitrateKbps = &maxBitrate
	media := &MediaInfo{
		Container: "mp4",
		Video:     &VideoStream{Codec: "h264", Width: 1920, Height: 1080, BitrateKbp: &bitrate},
		Audio:     []AudioStream{{Codec: "aac"}},
	}
	d := Decide(media, caps)
	assert.Equal(t, Transcode, d.Method)
	assert.Contains(t, d.Reasons, VideoBitrateTooHigh)
}

func TestDecide_AudioOnlyMismatchStillTranscodes(t *testing.T) {
	media := &MediaInfo{
		Container: "mp4",
		Video:     &VideoStream{Codec: "h264", Width: 1280, Height: 720},
		Audio:     []AudioStream{{Codec: "truehd"}},
	}
	d := Decide(media, DefaultClientCaps())
	assert.Equal(t, Transcode, d.Method)
	assert.Contains(t, d.Reasons, AudioCodecNotSupported)
	assert.True(t, d.TranscodeAudio)
	assert.False(t, d.TranscodeVideo)
}

func TestDecide_AccumulatesAllReasons(t *testing.T) {
	media := &MediaInfo{
		Container: "avi",
		Video:     &VideoStream{Codec: "mpeg2video", Width: 1280, Height: 720},
		Audio:     []AudioStream{{Codec: "truehd"}},
	}
	d := Decide(media, DefaultClientCaps())
	assert.Len(t, d.Reasons, 3)
	assert.Contains(t, d.Reasons, ContainerNotSupported)
	assert.Contains(t, d.Reasons, VideoCodecNotSupported)
	assert.Contains(t, d.Reasons, AudioCodecNotSupported)
}

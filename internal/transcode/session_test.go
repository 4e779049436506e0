package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_RefusesAtMaxConcurrent(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig(root)
	cfg.MaxConcurrent = 0
	m := NewManager(cfg)

	_, err := m.CreateSession("/dev/null", 0, "")
	require.Error(t, err)
	var maxReached *ErrMaxTranscodesReached
	require.ErrorAs(t, err, &maxReached)
	assert.Equal(t, 0, maxReached.MaxConcurrent)
}

func TestGetSession_UnknownID(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	_, ok := m.GetSession("does-not-exist")
	assert.False(t, ok)
}

func TestPing_UnknownSessionReturnsFalse(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	assert.False(t, m.Ping("does-not-exist"))
}

func TestStopSession_UnknownSessionErrors(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	err := m.StopSession("does-not-exist")
	require.Error(t, err)
	var notFound *ErrSessionNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestGetFilePath_RejectsPathTraversal(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	_, err := m.GetFilePath("any-session", "../../etc/passwd")
	assert.Error(t, err)
}

func TestGetFilePath_RejectsSeparators(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	_, err := m.GetFilePath("any-session", "sub/seg_00001.ts")
	assert.Error(t, err)
}

func TestGetFilePath_UnknownSessionErrors(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	_, err := m.GetFilePath("does-not-exist", "seg_00001.ts")
	require.Error(t, err)
	var notFound *ErrSessionNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestActiveCount_EmptyManager(t *testing.T) {
	m := NewManager(DefaultConfig(t.TempDir()))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestDetectHWAccel_MissingBinaryFallsBackToNone(t *testing.T) {
	assert.Equal(t, HWAccelNone, DetectHWAccel("/path/does/not/exist/ffmpeg"))
}

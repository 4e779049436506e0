// Package transcode manages bounded-concurrency HLS transcode sessions:
// launching, pinging, idle-reaping, and tearing down ffmpeg child
// processes, each writing into its own session directory.
package transcode

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type HWAccel string

const (
	HWAccelNone          HWAccel = "none"
	HWAccelNvenc         HWAccel = "nvenc"
	HWAccelVaapi         HWAccel = "vaapi"
	HWAccelQsv           HWAccel = "qsv"
	HWAccelVideoToolbox  HWAccel = "videotoolbox"
)

type Config struct {
	FFmpegPath      string
	TranscodeRoot   string
	MaxConcurrent   int
	SegmentSecs     int
	IdleTimeoutSecs int
	HWAccel         HWAccel
}

func DefaultConfig(root string) Config {
	return Config{
		TranscodeRoot:   root,
		MaxConcurrent:   4,
		SegmentSecs:     6,
		IdleTimeoutSecs: 60,
		HWAccel:         HWAccelNone,
		FFmpegPath:      "ffmpeg",
	}
}

// Session is one running (or recently finished) encoder child process and
// the bookkeeping needed to serve its output and reap it.
type Session struct {
	ID        string
	InputPath string
	OutputDir string
	StartedAt time.Time
	LastPing  time.Time
	cmd       *exec.Cmd

	mu sync.Mutex
}

func (s *Session) MasterPlaylistPath() string {
	return filepath.Join(s.OutputDir, "master.m3u8")
}

func (s *Session) SegmentPath(filename string) string {
	return filepath.Join(s.OutputDir, filename)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastPing = time.Now()
	s.mu.Unlock()
}

func (s *Session) isIdle(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastPing) >= timeout
}

// ErrMaxTranscodesReached is returned by CreateSession when the session
// count is already at the configured limit.
type ErrMaxTranscodesReached struct {
	MaxConcurrent int
}

func (e *ErrMaxTranscodesReached) Error() string {
	return fmt.Sprintf("maximum concurrent transcodes reached (%d)", e.MaxConcurrent)
}

// ErrSessionNotFound is returned by any operation referencing an unknown
// or already-reaped session id.
type ErrSessionNotFound struct{ ID string }

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// Manager maintains the bounded set of running sessions. The map is the
// only shared mutable structure; one mutex guards it, and admission is
// checked under the same lock that inserts the new session so acceptance
// and insertion are atomic (unlike a semaphore acquired and immediately
// dropped, which lets concurrent admission checks race past the limit).
type Manager struct {
	cfg      Config
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, sessions: map[string]*Session{}}
}

// CreateSession refuses admission when the session count is already at
// max_concurrent, without touching disk or launching a process. Otherwise
// it spawns an encoder and inserts the record before releasing the lock.
func (m *Manager) CreateSession(inputPath string, startSeconds float64, videoCodecOverride string) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxConcurrent {
		m.mu.Unlock()
		return nil, &ErrMaxTranscodesReached{MaxConcurrent: m.cfg.MaxConcurrent}
	}

	id := uuid.NewString()
	outputDir := filepath.Join(m.cfg.TranscodeRoot, id)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("transcode: create output dir: %w", err)
	}

	cmd, err := spawnFFmpeg(m.cfg, inputPath, outputDir, startSeconds, videoCodecOverride)
	if err != nil {
		os.RemoveAll(outputDir)
		m.mu.Unlock()
		return nil, fmt.Errorf("transcode: spawn ffmpeg: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		InputPath: inputPath,
		OutputDir: outputDir,
		StartedAt: now,
		LastPing:  now,
		cmd:       cmd,
	}
	m.sessions[id] = sess
	m.mu.Unlock()

	return sess, nil
}

func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Ping refreshes last_ping. The map lock is only held long enough to look
// the session up; the actual touch happens on the session's own mutex so
// concurrent pings never block on the manager lock.
func (m *Manager) Ping(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.touch()
	return true
}

// GetFilePath validates filename contains no path separators or ".." and
// returns the absolute path within the session directory.
func (m *Manager) GetFilePath(id, filename string) (string, error) {
	if err := validateSegmentFilename(filename); err != nil {
		return "", err
	}
	s, ok := m.GetSession(id)
	if !ok {
		return "", &ErrSessionNotFound{ID: id}
	}
	return s.SegmentPath(filename), nil
}

func validateSegmentFilename(filename string) error {
	if filename == "" || filename == "." || strings.Contains(filename, "..") {
		return fmt.Errorf("transcode: invalid segment filename %q", filename)
	}
	for _, r := range filename {
		if r == '/' || r == '\\' {
			return fmt.Errorf("transcode: invalid segment filename %q", filename)
		}
	}
	if filepath.Base(filename) != filename {
		return fmt.Errorf("transcode: invalid segment filename %q", filename)
	}
	return nil
}

// StopSession terminates the child (signal + wait), removes the session
// record, and best-effort deletes the output directory.
func (m *Manager) StopSession(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return &ErrSessionNotFound{ID: id}
	}
	return m.teardown(s)
}

func (m *Manager) teardown(s *Session) error {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	if err := os.RemoveAll(s.OutputDir); err != nil {
		return fmt.Errorf("transcode: remove output dir: %w", err)
	}
	return nil
}

// CleanupIdle tears down every session whose last ping is older than the
// configured idle timeout. Intended to be called periodically (~20s) by a
// background task.
func (m *Manager) CleanupIdle() int {
	timeout := time.Duration(m.cfg.IdleTimeoutSecs) * time.Second

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.isIdle(timeout) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		_ = m.teardown(s)
	}
	return len(idle)
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunIdleReapLoop launches a long-lived background task reaping idle
// sessions on a fixed cadence until stop is closed.
func (m *Manager) RunIdleReapLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanupIdle()
		case <-stop:
			return
		}
	}
}

package api

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reelhaven/mediaserver/internal/apierror"
	"github.com/reelhaven/mediaserver/internal/auth"
	"github.com/reelhaven/mediaserver/internal/httputil"
	"github.com/reelhaven/mediaserver/internal/metrics"
	"github.com/reelhaven/mediaserver/internal/probe"
	"github.com/reelhaven/mediaserver/internal/streaming"
	"github.com/reelhaven/mediaserver/internal/transcode"
)

var capsValidator = validator.New()

// hlsPollInterval and the two poll-count constants mirror the
// original encoder's bounded wait before a playlist/segment is
// considered never-going-to-appear: ffmpeg writes the master playlist
// and each segment asynchronously, so the first request after session
// creation routinely arrives before the file exists on disk.
const (
	hlsPollInterval     = 200 * time.Millisecond
	hlsMasterPollCount  = 50 // ~10s
	hlsSegmentPollCount = 25 // ~5s
)

// waitForFile polls for path to appear, sleeping interval between
// attempts, up to attempts times. Returns the opened file, or the last
// os.Open error if the file never appeared.
func waitForFile(path string, interval time.Duration, attempts int) (*os.File, error) {
	var err error
	for i := 0; i < attempts; i++ {
		var f *os.File
		f, err = os.Open(path)
		if err == nil {
			return f, nil
		}
		time.Sleep(interval)
	}
	return nil, err
}

// streamIdentity is whichever of session cookie/bearer or a scoped `st`
// stream token authorized this request.
type streamIdentity struct {
	UserID  string
	IsAdmin bool
}

// resolveStreamIdentity tries the ordinary session first so a browser tab
// that is already logged in never needs a stream token; a <video> element
// that cannot set headers falls back to the `st` query parameter.
func (s *Server) resolveStreamIdentity(r *http.Request, fileID string) (*streamIdentity, error) {
	// The legacy `token=` query parameter leaked scoped credentials into
	// browser history and proxy logs; new clients must use `st` instead.
	if r.URL.Query().Get("token") != "" {
		return nil, apierror.Unauthorized("legacy token parameter is not supported; use st")
	}

	if user := auth.UserFromContext(r.Context()); user != nil {
		return &streamIdentity{UserID: user.UserID, IsAdmin: user.IsAdmin}, nil
	}

	// Direct play is mounted outside RequireAuth, so a bearer header or
	// session cookie is looked up here before falling back to `st`.
	session := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		session = strings.TrimPrefix(h, "Bearer ")
	} else if c, err := r.Cookie("session"); err == nil {
		session = c.Value
	}
	if session != "" {
		if userID, isAdmin, exp, err := s.users.GetSession(session); err == nil && !auth.IsTokenExpired(exp) {
			return &streamIdentity{UserID: userID, IsAdmin: isAdmin}, nil
		}
	}

	token := r.URL.Query().Get("st")
	if token == "" {
		return nil, apierror.Unauthorized("authentication required")
	}
	claims, err := s.streamTokens.Validate(token, fileID)
	if err != nil {
		return nil, err
	}
	return &streamIdentity{UserID: claims.UserID, IsAdmin: claims.Role == "admin"}, nil
}

// authorizeLibraryAccess resolves the media path for itemID and confirms
// the identity may reach it: admins may stream from any library, everyone
// else only from libraries they've been explicitly granted.
func (s *Server) authorizeLibraryAccess(id *streamIdentity, itemID string) (path string, err error) {
	item, err := s.items.GetItem(itemID)
	if err != nil {
		return "", apierror.NotFound("item not found")
	}

	path, err = s.items.GetItemMediaPath(itemID)
	if err != nil {
		path, err = s.items.GetFirstDescendantMediaPath(itemID)
		if err != nil {
			return "", apierror.NotFound("no media file mapped to this item")
		}
	}

	var roots []string
	if id.IsAdmin {
		paths, err := s.libraries.GetLibraryPaths(item.LibraryID)
		if err != nil {
			return "", apierror.Internal("failed to resolve library paths")
		}
		for _, p := range paths {
			roots = append(roots, p.Path)
		}
	} else {
		paths, err := s.libraries.GetLibraryPathsForUser(id.UserID)
		if err != nil {
			return "", apierror.Internal("failed to resolve library paths")
		}
		for _, p := range paths {
			if p.LibraryID == item.LibraryID {
				roots = append(roots, p.Path)
			}
		}
	}
	if len(roots) == 0 {
		return "", apierror.Forbidden("not authorized for this library")
	}

	if err := streaming.ValidatePathInLibrary(path, roots); err != nil {
		return "", err
	}
	return path, nil
}

// authorizeFileAccess resolves a MediaFile by id directly (no owning item
// lookup required) and confirms the identity may reach its on-disk path:
// admins may stream from any library root, everyone else only from roots
// belonging to libraries they've been explicitly granted.
func (s *Server) authorizeFileAccess(id *streamIdentity, fileID string) (path string, err error) {
	file, err := s.items.GetMediaFile(fileID)
	if err != nil {
		return "", apierror.NotFound("media file not found")
	}

	var roots []string
	if id.IsAdmin {
		paths, err := s.libraries.GetAllLibraryPaths()
		if err != nil {
			return "", apierror.Internal("failed to resolve library paths")
		}
		for _, p := range paths {
			roots = append(roots, p.Path)
		}
	} else {
		paths, err := s.libraries.GetLibraryPathsForUser(id.UserID)
		if err != nil {
			return "", apierror.Internal("failed to resolve library paths")
		}
		for _, p := range paths {
			roots = append(roots, p.Path)
		}
	}
	if len(roots) == 0 {
		return "", apierror.Forbidden("not authorized for this library")
	}

	if err := streaming.ValidatePathInLibrary(file.Path, roots); err != nil {
		return "", err
	}
	return file.Path, nil
}

// decodeClientCaps reads an optional JSON-body ClientCaps (a POST client
// wanting to declare its full codec/container support), validating it with
// the same struct tags the type itself carries. A body-less request (a
// plain probe-only call) falls back to the broad default caps, optionally
// narrowed by max_width/max_height query parameters.
func (s *Server) decodeClientCaps(r *http.Request) (probe.ClientCaps, error) {
	if r.ContentLength == 0 {
		caps := probe.DefaultClientCaps()
		if v := r.URL.Query().Get("max_width"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				caps.MaxWidth = &n
			}
		}
		if v := r.URL.Query().Get("max_height"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				caps.MaxHeight = &n
			}
		}
		return caps, nil
	}

	var caps probe.ClientCaps
	if err := httputil.ReadJSON(r, &caps); err != nil {
		return probe.ClientCaps{}, apierror.BadRequest("invalid client caps body")
	}
	if err := capsValidator.Struct(caps); err != nil {
		return probe.ClientCaps{}, apierror.Validation("invalid client capabilities", map[string]any{"error": err.Error()})
	}
	return caps, nil
}

func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	user := auth.UserFromContext(r.Context())
	if user == nil {
		httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
		return
	}
	path, err := s.authorizeLibraryAccess(&streamIdentity{UserID: user.UserID, IsAdmin: user.IsAdmin}, itemID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	media, err := s.prober.Probe(r.Context(), path)
	if err != nil {
		metrics.ProbeFailures.Inc()
		httputil.WriteAPIError(w, apierror.Internal("failed to probe media file"))
		return
	}

	caps, err := s.decodeClientCaps(r)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	decision := probe.Decide(media, caps)
	metrics.PlayDecisions.WithLabelValues(string(decision.Method)).Inc()

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"media":    media,
		"decision": decision,
	})
}

func (s *Server) handleIssueStreamToken(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if _, err := s.authorizeLibraryAccess(&streamIdentity{UserID: user.UserID, IsAdmin: user.IsAdmin}, itemID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	// The range streamer authorizes by file id (GET /stream/file/{fileID}),
	// so the token must be scoped to the underlying MediaFile, not the item.
	fileID, err := s.items.GetItemMediaFileID(itemID)
	if err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("no media file mapped to this item"))
		return
	}

	role := "user"
	if user.IsAdmin {
		role = "admin"
	}
	token, err := s.streamTokens.Issue(user.UserID, role, fileID, "", s.cfg.StreamTokenTTL)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to issue stream token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int(s.cfg.StreamTokenTTL.Seconds()),
	})
}

func (s *Server) handleDirectPlay(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	id, err := s.resolveStreamIdentity(r, fileID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	path, err := s.authorizeFileAccess(id, fileID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	if err := streaming.ServeFileRange(w, r, path); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
}

func (s *Server) handleCreateTranscodeSession(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	user := auth.UserFromContext(r.Context())
	if user == nil {
		httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
		return
	}
	path, err := s.authorizeLibraryAccess(&streamIdentity{UserID: user.UserID, IsAdmin: user.IsAdmin}, itemID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	var req struct {
		StartSeconds float64 `json:"start_seconds"`
		VideoCodec   string  `json:"video_codec"`
	}
	_ = httputil.ReadJSON(r, &req)

	sess, err := s.transcodeMgr.CreateSession(path, req.StartSeconds, req.VideoCodec)
	if err != nil {
		if _, ok := err.(*transcode.ErrMaxTranscodesReached); ok {
			httputil.WriteAPIError(w, apierror.TooManyRequests(5))
			return
		}
		httputil.WriteAPIError(w, apierror.Internal("failed to start transcode"))
		return
	}
	metrics.ActiveTranscodeSessions.Set(float64(s.transcodeMgr.ActiveCount()))

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID,
		"master_url": "/stream/hls/" + sess.ID + "/master.m3u8",
		"started_at": sess.StartedAt.Unix(),
	})
}

func (s *Server) handleMasterPlaylist(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, ok := s.transcodeMgr.GetSession(sessionID)
	if !ok {
		httputil.WriteAPIError(w, apierror.NotFound("session not found"))
		return
	}
	s.transcodeMgr.Ping(sessionID)

	f, err := waitForFile(sess.MasterPlaylistPath(), hlsPollInterval, hlsMasterPollCount)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("playlist never appears within the window"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.Copy(w, f)
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	filename := chi.URLParam(r, "filename")

	path, err := s.transcodeMgr.GetFilePath(sessionID, filename)
	if err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("segment not found"))
		return
	}
	s.transcodeMgr.Ping(sessionID)

	f, err := waitForFile(path, hlsPollInterval, hlsSegmentPollCount)
	if err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("segment not ready"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", streaming.ContentTypeForPath(filename))
	w.Header().Set("Cache-Control", "no-store")
	n, _ := io.Copy(w, f)
	metrics.StreamBytesServed.WithLabelValues("hls").Add(float64(n))
}

func (s *Server) handleSessionPing(w http.ResponseWriter, r *http.Request) {
	if !s.transcodeMgr.Ping(chi.URLParam(r, "sessionID")) {
		httputil.WriteAPIError(w, apierror.NotFound("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.transcodeMgr.StopSession(chi.URLParam(r, "sessionID")); err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("session not found"))
		return
	}
	metrics.ActiveTranscodeSessions.Set(float64(s.transcodeMgr.ActiveCount()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	id := &streamIdentity{}
	if u := auth.UserFromContext(r.Context()); u != nil {
		id = &streamIdentity{UserID: u.UserID, IsAdmin: u.IsAdmin}
	} else {
		httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
		return
	}

	path, err := streaming.DecodeSubtitleHexPath(chi.URLParam(r, "hexPath"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	var roots []string
	if id.IsAdmin {
		all, err := s.libraries.GetAllLibraryPaths()
		if err != nil {
			httputil.WriteAPIError(w, apierror.Internal("failed to resolve library paths"))
			return
		}
		for _, p := range all {
			roots = append(roots, p.Path)
		}
	} else {
		paths, err := s.libraries.GetLibraryPathsForUser(id.UserID)
		if err != nil {
			httputil.WriteAPIError(w, apierror.Internal("failed to resolve library paths"))
			return
		}
		for _, p := range paths {
			roots = append(roots, p.Path)
		}
	}

	if err := streaming.ServeSubtitle(w, r, path, roots); err != nil {
		httputil.WriteAPIError(w, err)
	}
}

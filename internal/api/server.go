// Package api wires the HTTP surface: library/item browsing, playback
// (play-decision, direct-play range serving, HLS transcode sessions), the
// job/event plane, and the bearer-token auth surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/reelhaven/mediaserver/internal/auth"
	"github.com/reelhaven/mediaserver/internal/config"
	"github.com/reelhaven/mediaserver/internal/events"
	"github.com/reelhaven/mediaserver/internal/jobs"
	"github.com/reelhaven/mediaserver/internal/metrics"
	"github.com/reelhaven/mediaserver/internal/probe"
	"github.com/reelhaven/mediaserver/internal/scanner"
	"github.com/reelhaven/mediaserver/internal/store"
	"github.com/reelhaven/mediaserver/internal/streamtoken"
	"github.com/reelhaven/mediaserver/internal/transcode"
	"github.com/reelhaven/mediaserver/internal/version"
)

// Server holds every dependency a handler needs; handlers are its methods,
// matching the teacher's single-struct-of-repositories shape.
type Server struct {
	cfg *config.Config
	log zerolog.Logger

	libraries *store.LibraryRepository
	items     *store.ItemRepository
	jobsRepo  *store.JobRepository
	users     *store.UserRepository

	scanner      *scanner.Scanner
	prober       *probe.Prober
	transcodeMgr *transcode.Manager
	jobQueue     *jobs.Queue
	bus          *events.Bus
	streamTokens *streamtoken.Issuer

	authHandler *auth.Handler
	authMW      *auth.Middleware
}

type Deps struct {
	Cfg          *config.Config
	Log          zerolog.Logger
	Libraries    *store.LibraryRepository
	Items        *store.ItemRepository
	Jobs         *store.JobRepository
	Users        *store.UserRepository
	Scanner      *scanner.Scanner
	Prober       *probe.Prober
	TranscodeMgr *transcode.Manager
	JobQueue     *jobs.Queue
	Bus          *events.Bus
	StreamTokens *streamtoken.Issuer
}

func NewServer(d Deps) *Server {
	users := d.Users
	return &Server{
		cfg:          d.Cfg,
		log:          d.Log.With().Str("component", "api").Logger(),
		libraries:    d.Libraries,
		items:        d.Items,
		jobsRepo:     d.Jobs,
		users:        users,
		scanner:      d.Scanner,
		prober:       d.Prober,
		transcodeMgr: d.TranscodeMgr,
		jobQueue:     d.JobQueue,
		bus:          d.Bus,
		streamTokens: d.StreamTokens,
		authHandler:  auth.NewHandler(users),
		authMW:       auth.NewMiddleware(users),
	}
}

// Router assembles the full route tree. Mounted without RequireAuth:
// /healthz, /metrics, /auth, /events, /ws, the direct-play route (which
// authenticates itself from a session or an `st` stream token) and the HLS
// playlist/segment/ping/stop routes (which check no credential; the session
// id in the path addresses them). Everything under /api requires a session.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(securityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mediaserver-Version", version.Load().Version)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.With(httprate.LimitByIP(20, time.Minute)).Mount("/auth", s.authHandler.Router())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMW.RequireAuth)

		r.Route("/libraries", func(r chi.Router) {
			r.Get("/", s.handleListLibraries)
			r.With(s.authMW.RequireAdmin).Post("/", s.handleCreateLibrary)
			r.Get("/{libraryID}", s.handleGetLibrary)
			r.Get("/{libraryID}/items", s.handleListRootItems)
			r.With(s.authMW.RequireAdmin).Post("/{libraryID}/scan", s.handleScanLibrary)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/{itemID}", s.handleGetItem)
			r.Get("/{itemID}/children", s.handleListChildren)
			r.Get("/{itemID}/progress", s.handleGetProgress)
			r.Put("/{itemID}/progress", s.handleUpdateProgress)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/{jobID}", s.handleGetJob)
			r.Post("/{jobID}/cancel", s.handleCancelJob)
		})

		r.With(s.authMW.RequireAdmin).Get("/browse", s.handleBrowse)
	})

	r.Route("/stream", func(r chi.Router) {
		r.With(s.authMW.RequireAuth).Post("/{itemID}/info", s.handleStreamInfo)
		r.With(s.authMW.RequireAuth).Post("/{itemID}/token", s.handleIssueStreamToken)
		r.With(s.authMW.RequireAuth).Post("/{itemID}/transcode", s.handleCreateTranscodeSession)

		// Direct play accepts either a session bearer token/cookie or the
		// `st` query-param stream token, since a <video>/<audio> element
		// cannot set an Authorization header. The HLS routes below do not
		// check a credential.
		r.Get("/file/{fileID}", s.handleDirectPlay)
		r.Get("/hls/{sessionID}/master.m3u8", s.handleMasterPlaylist)
		r.Get("/hls/{sessionID}/{filename}", s.handleSegment)
		r.Post("/session/{sessionID}/ping", s.handleSessionPing)
		r.Delete("/session/{sessionID}", s.handleStopSession)

		r.With(s.authMW.RequireAuth).Get("/subtitle/{hexPath}", s.handleSubtitle)
	})

	r.With(httprate.LimitByIP(5, time.Minute)).Get("/events", s.bus.ServeSSE)
	r.Get("/ws", s.bus.ServeWebSocket)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

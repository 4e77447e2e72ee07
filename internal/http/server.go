package http

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"pocket/internal/cache"
	"pocket/internal/core"
	applog "pocket/internal/log"
	"pocket/internal/middleware/ratelimit"
	"pocket/internal/middleware/security"
	"pocket/internal/middleware/trace"
	"pocket/internal/services"
)

const (
	categoryCacheSize = 256
	categoryCacheTTL  = 5 * time.Minute
	cacheCleanupEvery = time.Minute
	photoMaxAge       = 24 * 60 * 60
	maxPhotoUpload    = 20 << 20
)

// PhotoFiles opens a user's stored photos by file name.
type PhotoFiles interface {
	Open(userID, name string) (*os.File, error)
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Logger     *applog.Logger
	Categories *services.CategoryService
	Records    *services.RecordService
	Photos     PhotoFiles
	// Ready reports whether the backing store is reachable. Nil means always ready.
	Ready       func(ctx context.Context) error
	DefaultUser string
	MenuLimit   int
}

type Server struct {
	http.Server

	logger      *applog.Logger
	events      *applog.StructuredLogger
	categories  *services.CategoryService
	records     *services.RecordService
	photos      PhotoFiles
	ready       func(ctx context.Context) error
	defaultUser string
	menuLimit   int

	// Per-user category lists, sentinel excluded.
	categoryCache *cache.LoadingCache[[]core.Category]
	cacheManager  *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if deps.DefaultUser == "" {
		deps.DefaultUser = core.DefaultUserID
	}
	if deps.MenuLimit <= 0 {
		deps.MenuLimit = services.DefaultMenuLimit
	}

	s := &Server{
		logger:        logger,
		events:        applog.NewStructuredLogger(logger),
		categories:    deps.Categories,
		records:       deps.Records,
		photos:        deps.Photos,
		ready:         deps.Ready,
		defaultUser:   deps.DefaultUser,
		menuLimit:     deps.MenuLimit,
		categoryCache: cache.NewLoadingCache[[]core.Category](categoryCacheSize, categoryCacheTTL),
		cacheManager:  cache.NewManager(),
		limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:      security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.cacheManager.Register(s.categoryCache)
	s.cacheManager.StartCleanup(cacheCleanupEvery)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories", s.handleDeleteCategories)
	mux.HandleFunc("GET /api/categories/picker", s.handlePresentPicker)
	mux.HandleFunc("POST /api/categories/picker", s.handleChooseCategory)

	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("GET /api/records/new", s.handleNewForm)
	mux.HandleFunc("GET /api/records/export", s.handleExport)
	mux.HandleFunc("GET /api/records/{id}", s.handleGetRecord)
	mux.HandleFunc("GET /api/records/{id}/form", s.handleEditForm)
	mux.HandleFunc("POST /api/records", s.handleSaveRecord)
	mux.HandleFunc("DELETE /api/records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("POST /api/records/photo", s.handleUploadPhoto)
	mux.Handle("GET /api/photos/{name}", security.CacheControlMiddleware(photoMaxAge)(http.HandlerFunc(s.handleServePhoto)))

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			Warn("Rate limit exceeded", applog.FieldClientIP, s.detector.ExtractClientIP(r))
		TooManyRequestsError().Write(w)
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit, http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) userID(r *http.Request) string {
	return UserID(r, s.defaultUser)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			applog.FromContext(r.Context()).Warn("Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"requests":       s.tracer.GetMetrics(),
		"rate_limit":     s.limiter.GetMetrics(),
		"security":       s.detector.GetMetrics(),
		"category_cache": s.categoryCache.Stats(),
	}).Write(w)
}

package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"carmatch/internal/cache"
	"carmatch/internal/core"
	applog "carmatch/internal/log"
	"carmatch/internal/middleware/ratelimit"
	"carmatch/internal/middleware/security"
	"carmatch/internal/middleware/trace"
	"carmatch/internal/services"
	appweb "carmatch/web"
)

type (
	// Submitter accepts questionnaire submissions.
	Submitter interface {
		Submit(ctx context.Context, r core.SubmissionRecord) (core.SubmissionRecord, string, error)
		Options() core.Options
	}

	// DashboardBuilder produces the aggregated dashboard for the current store.
	DashboardBuilder interface {
		Build(ctx context.Context) (services.Report, error)
	}

	// Pinger reports whether a dependency is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// StatsSource exposes cache effectiveness for /metrics.
	StatsSource interface {
		Stats() cache.Stats
	}
)

// Deps are the collaborators of the HTTP server. Ready and CacheStats are
// optional.
type Deps struct {
	Submissions        Submitter
	Dashboard          DashboardBuilder
	Ready              Pinger
	CacheStats         StatsSource
	Logger             *applog.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	templates   *template.Template
	submissions Submitter
	dashboard   DashboardBuilder
	ready       Pinger
	cacheStats  StatsSource
	logger      *applog.Logger

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		submissions: deps.Submissions,
		dashboard:   deps.Dashboard,
		ready:       deps.Ready,
		cacheStats:  deps.CacheStats,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(limiterCfg),
		detector:    security.NewDetector(),
		started:     time.Now(),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", "error", err, applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/submissions", s.handleCreateSubmission)
	mux.HandleFunc("/dashboard", s.handleDashboardPage)
	mux.HandleFunc("/api/dashboard", s.handleDashboardJSON)
	mux.HandleFunc("/api/charts/colors", s.handleColorsChart)
	mux.HandleFunc("/api/charts/hobbies", s.handleHobbiesChart)
	mux.HandleFunc("/api/motor-types", s.handleMotorTypes)
	mux.HandleFunc("/api/options", s.handleOptions)
	mux.HandleFunc("/api/cities", s.handleCities)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if wantsJSON(r) || r.Header.Get("Content-Type") == "application/json" {
		writeJSONError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later", nil)
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	tmpl := s.templates.Lookup(name)
	if tmpl == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template not found", "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err.Error(),
			"template", name,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

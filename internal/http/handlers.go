package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"carmatch/internal/core"
	applog "carmatch/internal/log"
)

// readyTimeout bounds the dependency check behind /readyz.
const readyTimeout = 3 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether templates are loaded and the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["store"] = "not_checked"
	default:
		if err := s.ready.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
				applog.FieldComponent, applog.ComponentBackend,
				applog.FieldError, err.Error())
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_response_time_microseconds_avg", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", limitMetrics.TotalHits)
	metric("rate_limit_active_clients", "Clients tracked by the rate limiter", "gauge", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "Requests flagged as suspicious", "counter", securityMetrics.SuspiciousRequests)
	metric("invalid_client_ip_total", "Requests with unparseable client addresses", "counter", securityMetrics.InvalidIPAttempts)
	if s.cacheStats != nil {
		st := s.cacheStats.Stats()
		metric("dashboard_cache_entries", "Cached dashboard reports", "gauge", st.Size)
		metric("dashboard_cache_hits_total", "Dashboard cache hits", "counter", st.Hits)
		metric("dashboard_cache_misses_total", "Dashboard cache misses", "counter", st.Misses)
	}
	metric("uptime_seconds", "Seconds since the server started", "gauge", int64(time.Since(s.started).Seconds()))
}

// formView is the data behind index.html.
type formView struct {
	Options      core.Options
	Genders      []core.Gender
	MinSeats     int
	MaxSeats     int
	MaxBirthDate string
	Values       formValues
	Errors       map[string]string
	Success      string
}

type formValues struct {
	FullName      string
	Gender        string
	Email         string
	BirthDate     string
	Address       string
	City          string
	Country       string
	FavoriteColor string
	NumOfSeats    string
	MotorType     string
	Hobbies       map[string]bool
}

func valuesOf(rec core.SubmissionRecord) formValues {
	v := formValues{
		FullName:      rec.FullName,
		Gender:        string(rec.Gender),
		Email:         rec.Email,
		BirthDate:     rec.BirthDate.String(),
		Address:       rec.Address,
		City:          rec.City,
		Country:       rec.Country,
		FavoriteColor: rec.FavoriteColor,
		MotorType:     rec.MotorType,
		Hobbies:       make(map[string]bool, len(rec.Hobbies)),
	}
	if rec.NumOfSeats != 0 {
		v.NumOfSeats = strconv.Itoa(rec.NumOfSeats)
	}
	for _, h := range rec.Hobbies {
		v.Hobbies[h] = true
	}
	return v
}

func (s *Server) newFormView() formView {
	return formView{
		Options:      s.submissions.Options(),
		Genders:      []core.Gender{core.Male, core.Female, core.Other},
		MinSeats:     core.MinSeats,
		MaxSeats:     core.MaxSeats,
		MaxBirthDate: time.Now().Format("2006-01-02"),
		Values:       formValues{Hobbies: map[string]bool{}},
	}
}

// handleIndex renders the intake form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !requireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	s.render(w, r, http.StatusOK, "index.html", s.newFormView())
}

// handleOptions lists the configured option sets for API clients.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	opts := s.submissions.Options()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"palette":    opts.Palette,
		"motorTypes": opts.MotorTypes,
		"hobbies":    opts.Hobbies,
		"countries":  opts.CountryNames(),
		"genders":    []core.Gender{core.Male, core.Female, core.Other},
		"minSeats":   core.MinSeats,
		"maxSeats":   core.MaxSeats,
	})
}

// handleCities lists the cities offered for ?country=.
func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	country := sanitizeInput(r.URL.Query().Get("country"))
	if country == "" {
		writeJSONError(w, r, http.StatusBadRequest, "country is required", nil)
		return
	}
	cities, ok := s.submissions.Options().CitiesOf(country)
	if !ok {
		writeJSONError(w, r, http.StatusNotFound, core.ErrUnknownCountry.Error(), nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"country": country,
		"cities":  cities,
	})
}

type submissionCreated struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleCreateSubmission accepts a form post or a JSON body. Invalid input
// yields 422 with one message per field.
func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parsed, err := parseSubmission(w, r)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, errBodyTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, errUnsupportedMedia):
			status = http.StatusUnsupportedMediaType
		}
		logger.WarnContext(ctx, "Submission body rejected",
			applog.FieldError, err.Error(),
			applog.FieldOperation, applog.OpParse)
		if parsed.JSON || wantsJSON(r) {
			writeJSONError(w, r, status, err.Error(), nil)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	if len(parsed.FieldErrors) > 0 {
		// Report unreadable values together with every other field problem.
		err := parsed.Record.Validate(s.submissions.Options(), time.Now())
		s.rejectSubmission(w, r, parsed, validationMessages(err, parsed.FieldErrors))
		return
	}

	rec, ref, err := s.submissions.Submit(ctx, parsed.Record)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.rejectSubmission(w, r, parsed, validationMessages(err, nil))
			return
		}
		applog.NewStructuredLogger(logger).LogError(ctx, "Submission append failed", err,
			applog.ComponentSubmission, applog.OpAppend, applog.NewFields())
		if parsed.JSON || wantsJSON(r) {
			writeJSONError(w, r, http.StatusBadGateway, "could not store submission", nil)
			return
		}
		http.Error(w, "could not store submission", http.StatusBadGateway)
		return
	}

	applog.NewStructuredLogger(logger).LogSubmissionCreated(ctx, rec.ID, rec.MotorType, rec.FavoriteColor, ref)

	if parsed.JSON || wantsJSON(r) {
		w.Header().Set("Location", "/api/dashboard")
		writeJSON(w, r, http.StatusCreated, submissionCreated{ID: rec.ID, Ref: ref, CreatedAt: rec.CreatedAt})
		return
	}
	view := s.newFormView()
	view.Success = "Thank you! Your answers have been recorded."
	s.render(w, r, http.StatusCreated, "index.html", view)
}

func (s *Server) rejectSubmission(w http.ResponseWriter, r *http.Request, parsed parsedSubmission, fields map[string]string) {
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Submission failed validation",
		applog.FieldComponent, applog.ComponentSubmission,
		applog.FieldOperation, applog.OpValidate,
		"fields", len(fields))

	if parsed.JSON || wantsJSON(r) {
		writeJSONError(w, r, http.StatusUnprocessableEntity, "invalid submission", fields)
		return
	}
	view := s.newFormView()
	view.Values = valuesOf(parsed.Record)
	view.Errors = fields
	s.render(w, r, http.StatusUnprocessableEntity, "index.html", view)
}

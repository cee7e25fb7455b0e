package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/text/message"

	"carmatch/internal/chart"
	applog "carmatch/internal/log"
	"carmatch/internal/services"
)

type (
	// dashboardView is the data behind dashboard.html. Numbers are formatted
	// for the caller's language.
	dashboardView struct {
		Empty       bool
		RecordCount string
		GeneratedAt string
		Colors      []string
		AgeRows     []ageRowView
		Hobbies     []hobbyView
		MotorTypes  []motorView
		Skipped     string
	}

	ageRowView struct {
		AgeGroup string
		Cells    []barCell
	}

	barCell struct {
		Color string
		Count string
		Width int
	}

	hobbyView struct {
		Hobby   string
		Count   string
		Percent string
		Color   string
	}

	motorView struct {
		MotorType string
		Male      string
		Female    string
	}

	// dashboardPayload is the /api/dashboard response. SkippedColorAge counts
	// records the age chart could not place; UnspecifiedMotorType counts
	// records filed under the unspecified motor row.
	dashboardPayload struct {
		Hash                 string    `json:"hash"`
		GeneratedAt          time.Time `json:"generatedAt"`
		SkippedColorAge      int       `json:"skippedColorAge"`
		UnspecifiedMotorType int       `json:"unspecifiedMotorType"`
		chart.Dashboard
	}
)

// buildReport loads the dashboard and writes an error response when that
// fails. The returned bool is false once a response has been written.
// variant distinguishes representations of the same report, such as the
// page language, in the ETag.
func (s *Server) buildReport(w http.ResponseWriter, r *http.Request, asJSON bool, variant string) (services.Report, bool) {
	ctx := r.Context()
	report, err := s.dashboard.Build(ctx)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Dashboard build failed", err,
			applog.ComponentDashboard, applog.OpAggregate, applog.NewFields())
		if asJSON {
			writeJSONError(w, r, status, "dashboard unavailable", nil)
		} else {
			http.Error(w, "dashboard unavailable, please retry shortly", status)
		}
		return services.Report{}, false
	}

	tag := report.Hash
	if variant != "" {
		tag += "-" + variant
	}
	etag := `"` + tag + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if report.Hash != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return services.Report{}, false
	}
	return report, true
}

// handleDashboardPage renders the three charts, or a placeholder when no
// submission has been stored yet.
func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	tag := matchLanguage(r)
	w.Header().Set("Vary", "Accept-Language")
	report, ok := s.buildReport(w, r, false, tag.String())
	if !ok {
		return
	}
	w.Header().Set("Content-Language", tag.String())
	s.render(w, r, http.StatusOK, "dashboard.html", newDashboardView(report, message.NewPrinter(tag)))
}

func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	report, ok := s.buildReport(w, r, true, "")
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, dashboardPayload{
		Hash:                 report.Hash,
		GeneratedAt:          report.Summary.GeneratedAt,
		SkippedColorAge:      report.Summary.ColorAge.Skipped,
		UnspecifiedMotorType: report.Summary.MotorGender.Unspecified,
		Dashboard:            report.Dashboard,
	})
}

func (s *Server) handleColorsChart(w http.ResponseWriter, r *http.Request) {
	s.servePiece(w, r, func(d chart.Dashboard) any { return d.Colors })
}

func (s *Server) handleHobbiesChart(w http.ResponseWriter, r *http.Request) {
	s.servePiece(w, r, func(d chart.Dashboard) any { return d.Hobbies })
}

func (s *Server) handleMotorTypes(w http.ResponseWriter, r *http.Request) {
	s.servePiece(w, r, func(d chart.Dashboard) any { return d.MotorTypes })
}

func (s *Server) servePiece(w http.ResponseWriter, r *http.Request, pick func(chart.Dashboard) any) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	report, ok := s.buildReport(w, r, true, "")
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, pick(report.Dashboard))
}

func newDashboardView(report services.Report, p *message.Printer) dashboardView {
	d := report.Dashboard
	v := dashboardView{
		Empty:       d.Empty,
		RecordCount: p.Sprintf("%d", d.RecordCount),
		Colors:      d.Colors.Labels,
	}
	if !report.Summary.GeneratedAt.IsZero() {
		v.GeneratedAt = report.Summary.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	if n := report.Summary.ColorAge.Skipped; n > 0 {
		v.Skipped = p.Sprintf("%d", n)
	}

	maxCount := 0
	for _, ds := range d.Colors.Datasets {
		for _, c := range ds.Data {
			maxCount = max(maxCount, c)
		}
	}
	for _, ds := range d.Colors.Datasets {
		row := ageRowView{AgeGroup: ds.Label, Cells: make([]barCell, len(ds.Data))}
		for i, c := range ds.Data {
			cell := barCell{Count: p.Sprintf("%d", c)}
			if i < len(ds.BackgroundColor) {
				cell.Color = ds.BackgroundColor[i]
			}
			if maxCount > 0 {
				cell.Width = c * 100 / maxCount
			}
			row.Cells[i] = cell
		}
		v.AgeRows = append(v.AgeRows, row)
	}

	v.Hobbies = hobbyViews(d.Hobbies, p)

	for _, row := range d.MotorTypes.Rows {
		if len(row) < 3 {
			continue
		}
		v.MotorTypes = append(v.MotorTypes, motorView{
			MotorType: p.Sprint(row[0]),
			Male:      p.Sprintf("%d", row[1]),
			Female:    p.Sprintf("%d", row[2]),
		})
	}
	return v
}

func hobbyViews(pie chart.PieSeries, p *message.Printer) []hobbyView {
	total := 0
	for _, c := range pie.Data {
		total += c
	}
	out := make([]hobbyView, len(pie.Labels))
	for i, label := range pie.Labels {
		hv := hobbyView{Hobby: label, Count: p.Sprintf("%d", pie.Data[i])}
		if i < len(pie.SliceColors) {
			hv.Color = pie.SliceColors[i]
		}
		if total > 0 {
			hv.Percent = p.Sprintf("%.1f%%", float64(pie.Data[i])*100/float64(total))
		}
		out[i] = hv
	}
	return out
}

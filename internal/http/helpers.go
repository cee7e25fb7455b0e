package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	applog "carmatch/internal/log"
)

// supportedLanguages drive number formatting on HTML pages. The first entry
// is the fallback.
var supportedLanguages = []language.Tag{
	language.English,
	language.Italian,
	language.German,
	language.French,
	language.Spanish,
	language.Portuguese,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// matchLanguage picks the supported language closest to Accept-Language.
func matchLanguage(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return supportedLanguages[0]
	}
	_, idx, _ := languageMatcher.Match(tags...)
	return supportedLanguages[idx]
}

// sanitizeInput removes control characters (except tab, LF, CR) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "JSON response encoding failed", "error", err, "path", r.URL.Path)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string, fields map[string]string) {
	writeJSON(w, r, status, errorResponse{Error: msg, Fields: fields})
}

// requireMethod writes 405 and reports false when r.Method is not one of methods.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

// wantsJSON reports whether the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

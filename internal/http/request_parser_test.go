package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"carmatch/internal/core"
)

func TestSplitHobbies(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"checkboxes", []string{"music", "art"}, []string{"music", "art"}},
		{"comma separated", []string{"music, art ,sports"}, []string{"music", "art", "sports"}},
		{"mixed and blanks", []string{"music,", " ", "art"}, []string{"music", "art"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitHobbies(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitHobbies(%q)=%q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSubmissionForm(t *testing.T) {
	form := validForm()
	form.Set("fullName", "  Ana\x00 Silva ")
	form.Set("id", "forged")
	req := postForm(form)

	parsed, err := parseSubmission(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec := parsed.Record
	if parsed.JSON || len(parsed.FieldErrors) != 0 {
		t.Fatalf("unexpected parse result %+v", parsed)
	}
	if rec.ID != "" {
		t.Fatalf("client id must be ignored, got %q", rec.ID)
	}
	if rec.FullName != "Ana Silva" {
		t.Fatalf("expected sanitized name, got %q", rec.FullName)
	}
	if rec.Gender != core.Female || rec.NumOfSeats != 5 || !rec.BirthDate.Equal(core.NewDate(1999, 2, 3).Time) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !reflect.DeepEqual(rec.Hobbies, []string{"music", "art"}) {
		t.Fatalf("unexpected hobbies %v", rec.Hobbies)
	}
}

func TestParseSubmissionJSON(t *testing.T) {
	body := `{"fullName":"Bo","gender":"Male","hobbies":"art, music","numOfSeats":"4","birthDate":"06/05/1990","createdAt":"2001-01-01T00:00:00Z"}`
	parsed, err := parseSubmission(httptest.NewRecorder(), postJSON(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec := parsed.Record
	if !parsed.JSON || !rec.CreatedAt.IsZero() {
		t.Fatalf("unexpected parse result %+v", parsed)
	}
	if rec.Gender != core.Male || rec.NumOfSeats != 4 || !reflect.DeepEqual(rec.Hobbies, []string{"art", "music"}) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.BirthDate.Equal(core.NewDate(1990, 5, 6).Time) {
		t.Fatalf("unexpected birth date %v", rec.BirthDate)
	}
	// Absent fields are left to validation.
	if len(parsed.FieldErrors) != 0 {
		t.Fatalf("unexpected field errors %v", parsed.FieldErrors)
	}
}

func TestParseSubmissionRejects(t *testing.T) {
	big := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader(`{"fullName":"`+strings.Repeat("a", maxBodyBytes)+`"}`))
	big.Header.Set("Content-Type", "application/json")
	if _, err := parseSubmission(httptest.NewRecorder(), big); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}

	xml := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader("<a/>"))
	xml.Header.Set("Content-Type", "application/xml")
	if _, err := parseSubmission(httptest.NewRecorder(), xml); !errors.Is(err, errUnsupportedMedia) {
		t.Fatalf("expected errUnsupportedMedia, got %v", err)
	}
}

func TestValidationMessages(t *testing.T) {
	rec := core.SubmissionRecord{FullName: "Ana", Gender: core.Female, Hobbies: []string{"chess", "golf"}}
	err := rec.Validate(testOptions, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	msgs := validationMessages(err, map[string]string{"birthDate": "birth date must be a date (YYYY-MM-DD)"})

	if msgs["birthDate"] != "birth date must be a date (YYYY-MM-DD)" {
		t.Fatalf("parse message should win, got %q", msgs["birthDate"])
	}
	if !strings.Contains(msgs["hobbies"], "chess") || !strings.Contains(msgs["hobbies"], "golf") {
		t.Fatalf("expected both unknown hobbies joined, got %q", msgs["hobbies"])
	}
	if _, ok := msgs["fullName"]; ok {
		t.Fatalf("valid field reported: %v", msgs)
	}
}

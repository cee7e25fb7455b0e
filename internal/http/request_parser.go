package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"carmatch/internal/core"
	"carmatch/internal/records"
)

// maxBodyBytes bounds submission bodies; a complete form is well under 4KB.
const maxBodyBytes = 64 << 10

var (
	errBodyTooLarge     = errors.New("request body too large")
	errUnsupportedMedia = errors.New("unsupported content type")
)

// formFields are the form inputs copied into the raw submission.
var formFields = []string{
	records.KeyFullName, records.KeyGender, records.KeyEmail, records.KeyBirthDate,
	records.KeyAddress, records.KeyCity, records.KeyCountry, records.KeyFavoriteColor,
	records.KeyNumOfSeats, records.KeyMotorType,
}

// parsedSubmission is an intake body decoded into a record. FieldErrors holds
// values that were present but unreadable, keyed by field.
type parsedSubmission struct {
	Record      core.SubmissionRecord
	FieldErrors map[string]string
	JSON        bool
}

// parseSubmission decodes a form-encoded or JSON intake body. Fields the
// server assigns (id, createdAt) are ignored.
func parseSubmission(w http.ResponseWriter, r *http.Request) (parsedSubmission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType := "application/x-www-form-urlencoded"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return parsedSubmission{}, fmt.Errorf("%w: %s", errUnsupportedMedia, ct)
		}
		mediaType = mt
	}

	var (
		raw map[string]any
		err error
	)
	isJSON := false
	switch mediaType {
	case "application/json":
		isJSON = true
		raw, err = readJSONBody(r.Body)
	case "application/x-www-form-urlencoded", "multipart/form-data":
		raw, err = readFormBody(r)
	default:
		return parsedSubmission{JSON: strings.HasSuffix(mediaType, "json")}, fmt.Errorf("%w: %s", errUnsupportedMedia, mediaType)
	}
	if err != nil {
		return parsedSubmission{JSON: isJSON}, err
	}

	delete(raw, records.KeyID)
	delete(raw, records.KeyCreatedAt)

	rec, issues := records.DecodeRaw(raw)
	out := parsedSubmission{Record: rec, JSON: isJSON}
	for _, iss := range issues {
		// Absent fields are reported by validation.
		if raw[iss.Field] == nil {
			continue
		}
		if out.FieldErrors == nil {
			out.FieldErrors = make(map[string]string)
		}
		out.FieldErrors[iss.Field] = fieldIssueMessage(iss)
	}
	return out, nil
}

func readJSONBody(body io.Reader) (map[string]any, error) {
	var raw map[string]any
	dec := json.NewDecoder(body)
	if err := dec.Decode(&raw); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode json body: expected an object")
	}
	return raw, nil
}

func readFormBody(r *http.Request) (map[string]any, error) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("parse form: %w", err)
	}

	raw := make(map[string]any, len(formFields)+1)
	for _, key := range formFields {
		if _, ok := r.PostForm[key]; ok {
			raw[key] = sanitizeInput(r.PostForm.Get(key))
		}
	}
	if values, ok := r.PostForm[records.KeyHobbies]; ok {
		raw[records.KeyHobbies] = splitHobbies(values)
	}
	return raw, nil
}

// splitHobbies accepts repeated checkbox values as well as a single
// comma-separated value.
func splitHobbies(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, h := range strings.Split(v, ",") {
			if h = sanitizeInput(h); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

func fieldIssueMessage(iss records.DecodeIssue) string {
	switch iss.Field {
	case records.KeyBirthDate:
		return "birth date must be a date (YYYY-MM-DD)"
	case records.KeyNumOfSeats:
		return "number of seats must be a whole number"
	case records.KeyHobbies:
		return "hobbies must be a list"
	default:
		return iss.Reason
	}
}

// validationMessages flattens a validation error into one message per field.
// Parse-stage messages win over validation messages for the same field.
func validationMessages(err error, parsed map[string]string) map[string]string {
	out := make(map[string]string)
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			if prev, ok := out[f.Field]; ok {
				out[f.Field] = prev + "; " + f.Err.Error()
				continue
			}
			out[f.Field] = f.Err.Error()
		}
	}
	for field, msg := range parsed {
		out[field] = msg
	}
	return out
}

package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	Male   Gender = "male"
	Female Gender = "female"
	Other  Gender = "other"
)

const (
	MinSeats = 2
	MaxSeats = 7
)

type (
	Gender string

	Date struct {
		time.Time
	}

	// SubmissionRecord is one completed questionnaire response.
	// Records are immutable once stored; the aggregation engine only reads them.
	SubmissionRecord struct {
		ID            string
		FullName      string
		Gender        Gender
		Email         string
		BirthDate     Date // zero when missing or unparseable
		Address       string
		City          string
		Country       string
		Hobbies       []string
		FavoriteColor string
		NumOfSeats    int
		MotorType     string
		CreatedAt     time.Time
	}

	// Country is a selectable country and the cities offered for it.
	Country struct {
		Name   string   `json:"name"`
		Cities []string `json:"cities"`
	}

	// Options are the fixed option sets offered by the intake form. An empty
	// set accepts any non-blank value.
	Options struct {
		Palette    []string
		MotorTypes []string
		Hobbies    []string
		Countries  []Country
	}
)

var (
	ErrMissingBirthDate = errors.New("missing birth date")
	ErrFutureBirthDate  = errors.New("birth date is in the future")
	ErrInvalidGender    = errors.New("invalid gender")
	ErrNoHobbies        = errors.New("at least one hobby is required")
	ErrInvalidSeats     = errors.New("number of seats out of range")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidName      = errors.New("name may contain only letters and spaces")
	ErrEmptyField       = errors.New("required field is empty")
	ErrUnknownColor     = errors.New("unknown color")
	ErrUnknownMotorType = errors.New("unknown motor type")
	ErrUnknownHobby     = errors.New("unknown hobby")
	ErrUnknownCountry   = errors.New("unknown country")
	ErrUnknownCity      = errors.New("city is not offered for this country")
)

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s]*$`)
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// dateLayouts are tried in order by ParseDate. The RFC3339 forms cover
// records written by older clients that serialized a full timestamp.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in any of the accepted layouts and reduces it to a
// calendar day. Timestamps with an offset keep their own calendar day. UTC
// timestamps are rounded to the nearest day: clients stored local midnight
// converted to UTC, so 1990-03-31T22:00:00Z is April 1 entered at UTC+2.
// Offsets beyond twelve hours can still land on the wrong day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingBirthDate
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if _, offset := t.Zone(); offset == 0 && hasZone(layout) {
			t = t.Add(12 * time.Hour)
		}
		y, m, d := t.Date()
		return NewDate(y, int(m), d), nil
	}
	return Date{}, fmt.Errorf("parse date %q: unsupported format", s)
}

func hasZone(layout string) bool {
	return layout == time.RFC3339 || layout == time.RFC3339Nano
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (g Gender) IsValid() bool {
	switch g {
	case Male, Female, Other:
		return true
	default:
		return false
	}
}

// ParseGender normalizes case and whitespace. Unknown values are returned
// verbatim so that stored data keeps its literal value.
func ParseGender(s string) Gender {
	return Gender(strings.ToLower(strings.TrimSpace(s)))
}

// FieldError describes one invalid field of a submission.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationError collects every field problem found in a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual field errors to errors.Is.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f.Err
	}
	return errs
}

func (e *ValidationError) add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Err: err})
}

// Validate applies the intake form rules. It is called at write time only;
// aggregation never rejects stored records.
func (r SubmissionRecord) Validate(opts Options, now time.Time) error {
	verr := &ValidationError{}

	name := strings.TrimSpace(r.FullName)
	switch {
	case name == "":
		verr.add("fullName", ErrEmptyField)
	case !nameRe.MatchString(name):
		verr.add("fullName", ErrInvalidName)
	}

	if !r.Gender.IsValid() {
		verr.add("gender", ErrInvalidGender)
	}

	switch email := strings.TrimSpace(r.Email); {
	case email == "":
		verr.add("email", ErrEmptyField)
	case !emailRe.MatchString(email):
		verr.add("email", ErrInvalidEmail)
	}

	switch {
	case r.BirthDate.IsZero():
		verr.add("birthDate", ErrMissingBirthDate)
	case r.BirthDate.After(now):
		verr.add("birthDate", ErrFutureBirthDate)
	}

	if strings.TrimSpace(r.Address) == "" {
		verr.add("address", ErrEmptyField)
	}
	validateLocation(verr, opts, r.Country, r.City)

	if len(r.Hobbies) == 0 {
		verr.add("hobbies", ErrNoHobbies)
	} else if len(opts.Hobbies) > 0 {
		for _, h := range r.Hobbies {
			if !contains(opts.Hobbies, h) {
				verr.add("hobbies", fmt.Errorf("%w: %s", ErrUnknownHobby, h))
			}
		}
	}

	switch {
	case strings.TrimSpace(r.FavoriteColor) == "":
		verr.add("favoriteColor", ErrEmptyField)
	case len(opts.Palette) > 0 && !contains(opts.Palette, r.FavoriteColor):
		verr.add("favoriteColor", ErrUnknownColor)
	}

	if r.NumOfSeats < MinSeats || r.NumOfSeats > MaxSeats {
		verr.add("numOfSeats", ErrInvalidSeats)
	}

	switch {
	case strings.TrimSpace(r.MotorType) == "":
		verr.add("motorType", ErrEmptyField)
	case len(opts.MotorTypes) > 0 && !contains(opts.MotorTypes, r.MotorType):
		verr.add("motorType", ErrUnknownMotorType)
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// validateLocation checks the country against the configured countries and
// the city against that country's cities. A city is only judged once its
// country is known.
func validateLocation(verr *ValidationError, opts Options, country, city string) {
	blankCountry := strings.TrimSpace(country) == ""
	blankCity := strings.TrimSpace(city) == ""
	if blankCountry {
		verr.add("country", ErrEmptyField)
	}
	if blankCity {
		verr.add("city", ErrEmptyField)
	}
	if blankCountry || len(opts.Countries) == 0 {
		return
	}
	cities, ok := opts.CitiesOf(country)
	if !ok {
		verr.add("country", ErrUnknownCountry)
		return
	}
	if !blankCity && len(cities) > 0 && !contains(cities, city) {
		verr.add("city", ErrUnknownCity)
	}
}

// CitiesOf returns the cities offered for country.
func (o Options) CitiesOf(country string) ([]string, bool) {
	for _, c := range o.Countries {
		if c.Name == country {
			return c.Cities, true
		}
	}
	return nil, false
}

// CountryNames lists the configured countries in order.
func (o Options) CountryNames() []string {
	names := make([]string, len(o.Countries))
	for i, c := range o.Countries {
		names[i] = c.Name
	}
	return names
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

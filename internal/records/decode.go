package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"carmatch/internal/core"
)

// Field keys of the stored submission shape.
const (
	KeyID            = "id"
	KeyFullName      = "fullName"
	KeyGender        = "gender"
	KeyEmail         = "email"
	KeyBirthDate     = "birthDate"
	KeyAddress       = "address"
	KeyCity          = "city"
	KeyCountry       = "country"
	KeyHobbies       = "hobbies"
	KeyFavoriteColor = "favoriteColor"
	KeyNumOfSeats    = "numOfSeats"
	KeyMotorType     = "motorType"
	KeyCreatedAt     = "createdAt"
)

// Columns is the canonical column order used when a record is flattened
// into a row (spreadsheets, exports).
var Columns = []string{
	KeyID, KeyCreatedAt, KeyFullName, KeyGender, KeyEmail, KeyBirthDate,
	KeyAddress, KeyCity, KeyCountry, KeyHobbies, KeyFavoriteColor,
	KeyNumOfSeats, KeyMotorType,
}

// ErrMalformedRecord is returned when a stored entry cannot be read as a
// record at all. Damage to individual fields is reported as DecodeIssue.
var ErrMalformedRecord = errors.New("malformed record")

// DecodeIssue describes a field that was missing or could not be decoded.
// The field is left at its zero value on the record.
type DecodeIssue struct {
	Field  string
	Reason string
}

func (i DecodeIssue) String() string {
	return i.Field + ": " + i.Reason
}

// DecodeRaw converts one loosely-typed stored entry into a record. It never
// rejects a record for a bad field; the aggregations decide per field
// whether the record can take part.
func DecodeRaw(raw map[string]any) (core.SubmissionRecord, []DecodeIssue) {
	var (
		r      core.SubmissionRecord
		issues []DecodeIssue
	)
	note := func(field, reason string) {
		issues = append(issues, DecodeIssue{Field: field, Reason: reason})
	}

	str := func(key string) string {
		v, ok := raw[key]
		if !ok || v == nil {
			note(key, "missing")
			return ""
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64, bool, json.Number:
			return fmt.Sprint(t)
		default:
			note(key, fmt.Sprintf("unexpected type %T", v))
			return ""
		}
	}

	if v, ok := raw[KeyID].(string); ok {
		r.ID = strings.TrimSpace(v)
	}
	if v, ok := raw[KeyCreatedAt].(string); ok && strings.TrimSpace(v) != "" {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v)); err == nil {
			r.CreatedAt = t
		} else {
			note(KeyCreatedAt, "unparseable timestamp")
		}
	}

	r.FullName = str(KeyFullName)
	r.Gender = core.ParseGender(str(KeyGender))
	r.Email = str(KeyEmail)
	r.Address = str(KeyAddress)
	r.City = str(KeyCity)
	r.Country = str(KeyCountry)
	r.FavoriteColor = str(KeyFavoriteColor)
	r.MotorType = str(KeyMotorType)

	if s := str(KeyBirthDate); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			note(KeyBirthDate, err.Error())
		} else {
			r.BirthDate = d
		}
	}

	hobbies, ok := decodeHobbies(raw[KeyHobbies])
	if !ok {
		note(KeyHobbies, "missing or not a list")
	}
	r.Hobbies = hobbies

	seats, ok := decodeInt(raw[KeyNumOfSeats])
	if !ok {
		note(KeyNumOfSeats, "missing or not a number")
	}
	r.NumOfSeats = seats

	return r, issues
}

// DecodeJSONArray decodes a stored JSON array of submissions. Entries that
// are not JSON objects are skipped and reported; issues are keyed by the
// entry's position.
func DecodeJSONArray(data []byte) ([]core.SubmissionRecord, map[int][]DecodeIssue, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return []core.SubmissionRecord{}, nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("decode submissions array: %w", err)
	}

	out := make([]core.SubmissionRecord, 0, len(entries))
	issues := make(map[int][]DecodeIssue)
	for i, e := range entries {
		var raw map[string]any
		if err := json.Unmarshal(e, &raw); err != nil || raw == nil {
			issues[i] = []DecodeIssue{{Field: "*", Reason: ErrMalformedRecord.Error()}}
			continue
		}
		r, iss := DecodeRaw(raw)
		if len(iss) > 0 {
			issues[i] = iss
		}
		out = append(out, r)
	}
	return out, issues, nil
}

// DecodeRow builds the raw map for a header-indexed row of cells and decodes
// it. Hobbies in a single cell are comma separated.
func DecodeRow(headers []string, row []string) (core.SubmissionRecord, []DecodeIssue) {
	raw := make(map[string]any, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" || i >= len(row) {
			continue
		}
		raw[h] = row[i]
	}
	return DecodeRaw(raw)
}

// EncodeRaw is the inverse of DecodeRaw, producing the stored JSON shape.
func EncodeRaw(r core.SubmissionRecord) map[string]any {
	raw := map[string]any{
		KeyFullName:      r.FullName,
		KeyGender:        string(r.Gender),
		KeyEmail:         r.Email,
		KeyBirthDate:     r.BirthDate.String(),
		KeyAddress:       r.Address,
		KeyCity:          r.City,
		KeyCountry:       r.Country,
		KeyHobbies:       append([]string{}, r.Hobbies...),
		KeyFavoriteColor: r.FavoriteColor,
		KeyNumOfSeats:    r.NumOfSeats,
		KeyMotorType:     r.MotorType,
	}
	if r.ID != "" {
		raw[KeyID] = r.ID
	}
	if !r.CreatedAt.IsZero() {
		raw[KeyCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return raw
}

// Row flattens a record into cells following Columns.
func Row(r core.SubmissionRecord) []string {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		r.ID, created, r.FullName, string(r.Gender), r.Email, r.BirthDate.String(),
		r.Address, r.City, r.Country, strings.Join(r.Hobbies, ", "), r.FavoriteColor,
		strconv.Itoa(r.NumOfSeats), r.MotorType,
	}
}

func decodeHobbies(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return cleanList(t), true
	case []any:
		list := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return cleanList(list), true
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		return cleanList(strings.Split(t, ",")), true
	default:
		return nil, false
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

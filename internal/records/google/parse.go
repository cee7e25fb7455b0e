package google

import (
	"fmt"
	"strings"

	"carmatch/internal/core"
	"carmatch/internal/records"
)

// parseRows decodes a value grid whose first row is the header. It returns
// the records and how many rows had at least one unreadable field.
func parseRows(values [][]any) ([]core.SubmissionRecord, int) {
	out := []core.SubmissionRecord{}
	if len(values) == 0 {
		return out, 0
	}
	headers := toStrings(values[0])
	damaged := 0
	for _, raw := range values[1:] {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		rec, issues := records.DecodeRow(headers, row)
		if len(issues) > 0 {
			damaged++
		}
		out = append(out, rec)
	}
	return out, damaged
}

func rowValues(r core.SubmissionRecord) []any {
	cells := records.Row(r)
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// columnLetter converts a 1-based column count to its A1 letter.
func columnLetter(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}

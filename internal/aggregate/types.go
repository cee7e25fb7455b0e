// Package aggregate turns a snapshot of submission records into the grouped
// summaries shown on the dashboard.
//
// Every function here is pure: it reads the input slice, never mutates it,
// keeps no state between calls and performs no I/O. Records the color/age
// matrix cannot place are skipped and counted; a blank motor type is filed
// under UnspecifiedMotorType so every male and female respondent is counted.
package aggregate

import (
	"time"

	"carmatch/internal/core"
)

// ColorAgeRow holds the favorite-color counts of one age group.
type ColorAgeRow struct {
	AgeGroup core.AgeGroup
	Counts   map[string]int
}

// ColorAgeMatrix maps age groups to color counts. Rows appear only for age
// groups observed in the data, in order of first observation.
type ColorAgeMatrix struct {
	Rows    []ColorAgeRow
	Skipped int
}

// Row returns the row for group, if present.
func (m ColorAgeMatrix) Row(group core.AgeGroup) (ColorAgeRow, bool) {
	for _, r := range m.Rows {
		if r.AgeGroup == group {
			return r, true
		}
	}
	return ColorAgeRow{}, false
}

// Total sums every cell of the matrix.
func (m ColorAgeMatrix) Total() int {
	total := 0
	for _, r := range m.Rows {
		for _, c := range r.Counts {
			total += c
		}
	}
	return total
}

// HobbyCount is one entry of a frequency ranking.
type HobbyCount struct {
	Hobby string
	Count int
}

// HobbyFrequency is sorted by descending count, ties in discovery order.
type HobbyFrequency []HobbyCount

// MotorGenderRow counts male and female respondents preferring a motor type.
type MotorGenderRow struct {
	MotorType   string
	MaleCount   int
	FemaleCount int
}

// UnspecifiedMotorType is the row label for records without a motor type.
const UnspecifiedMotorType = "unspecified"

// MotorGenderMatrix has one row per observed motor type in first-appearance
// order. Unspecified counts the records filed under UnspecifiedMotorType.
type MotorGenderMatrix struct {
	Rows        []MotorGenderRow
	Unspecified int
}

// Summary bundles the three aggregations computed over one snapshot.
type Summary struct {
	RecordCount int
	GeneratedAt time.Time
	ColorAge    ColorAgeMatrix
	Hobbies     HobbyFrequency
	MotorGender MotorGenderMatrix
}

// Empty reports whether the snapshot produced no data at all.
func (s Summary) Empty() bool {
	return len(s.ColorAge.Rows) == 0 && len(s.Hobbies) == 0 && len(s.MotorGender.Rows) == 0
}

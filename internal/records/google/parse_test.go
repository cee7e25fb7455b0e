package google

import (
	"reflect"
	"testing"

	"carmatch/internal/core"
	"carmatch/internal/records"
)

func TestParseRows(t *testing.T) {
	values := [][]any{
		{"fullName", "gender", "birthDate", "hobbies", "favoriteColor", "numOfSeats", "motorType"},
		{"Ana", "female", "1999-02-03", "reading, biking", "red", "5", "electric"},
		{},
		{"", "", "", "", "", "", ""},
		{"Bo", "male", "yesterday", "", "blue", 4.0, "hybrid"},
	}
	recs, damaged := parseRows(values)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if damaged != 2 {
		t.Fatalf("expected both rows flagged (missing columns), got %d", damaged)
	}

	ana := recs[0]
	if ana.FullName != "Ana" || ana.Gender != core.Female || ana.NumOfSeats != 5 {
		t.Fatalf("unexpected record %+v", ana)
	}
	if !reflect.DeepEqual(ana.Hobbies, []string{"reading", "biking"}) {
		t.Fatalf("unexpected hobbies %v", ana.Hobbies)
	}
	if !ana.BirthDate.Equal(core.NewDate(1999, 2, 3).Time) {
		t.Fatalf("unexpected birth date %v", ana.BirthDate)
	}

	bo := recs[1]
	if !bo.BirthDate.IsZero() || bo.Hobbies != nil || bo.NumOfSeats != 4 {
		t.Fatalf("unexpected record %+v", bo)
	}
}

func TestParseRowsEmpty(t *testing.T) {
	recs, damaged := parseRows(nil)
	if recs == nil || len(recs) != 0 || damaged != 0 {
		t.Fatalf("expected empty non-nil result, got %v %d", recs, damaged)
	}
	recs, _ = parseRows([][]any{{"fullName"}})
	if len(recs) != 0 {
		t.Fatalf("header only sheet should be empty, got %v", recs)
	}
}

func TestRowValuesFollowColumns(t *testing.T) {
	r := core.SubmissionRecord{ID: "x", FullName: "Cy", NumOfSeats: 2, Hobbies: []string{"a", "b"}}
	cells := rowValues(r)
	if len(cells) != len(records.Columns) {
		t.Fatalf("expected %d cells, got %d", len(records.Columns), len(cells))
	}
	headers := make([]any, len(records.Columns))
	for i, c := range records.Columns {
		headers[i] = c
	}
	back, _ := parseRows([][]any{headers, cells})
	if back[0].FullName != "Cy" || back[0].NumOfSeats != 2 || !reflect.DeepEqual(back[0].Hobbies, []string{"a", "b"}) {
		t.Fatalf("unexpected round trip %+v", back[0])
	}
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 13: "M", 26: "Z", 27: "AA", 52: "AZ"}
	for n, want := range cases {
		if got := columnLetter(n); got != want {
			t.Errorf("columnLetter(%d) = %q, want %q", n, got, want)
		}
	}
}

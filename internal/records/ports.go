package records

import (
	"context"

	"carmatch/internal/core"
)

// Ports for record store adapters.
type (
	// Loader returns the whole stored collection in insertion order. An empty
	// store yields an empty slice, not an error. The returned slice belongs to
	// the caller.
	Loader interface {
		Load(ctx context.Context) ([]core.SubmissionRecord, error)
	}

	Appender interface {
		Append(ctx context.Context, r core.SubmissionRecord) (ref string, err error)
	}

	// Store is a record store that can both read and write.
	Store interface {
		Loader
		Appender
	}
)

// Snapshot loads the collection and returns a private deep copy, so the
// aggregation never iterates a structure that is concurrently appended to.
func Snapshot(ctx context.Context, l Loader) ([]core.SubmissionRecord, error) {
	recs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Clone(recs), nil
}

// Clone deep-copies records, including each hobby slice.
func Clone(recs []core.SubmissionRecord) []core.SubmissionRecord {
	out := make([]core.SubmissionRecord, len(recs))
	for i, r := range recs {
		out[i] = r
		if r.Hobbies != nil {
			out[i].Hobbies = append([]string(nil), r.Hobbies...)
		}
	}
	return out
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"carmatch/internal/core"
	"carmatch/internal/records"

	_ "modernc.org/sqlite"
)

// Sync states of a stored submission with respect to the sheet mirror.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var _ records.Store = (*SQLiteRepository)(nil)

// ErrNotFound is returned when a submission id does not exist.
var ErrNotFound = errors.New("submission not found")

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// PendingSubmission identifies a stored submission awaiting mirroring.
type PendingSubmission struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

const submissionColumns = `id, public_id, full_name, gender, email, birth_date, address, city, country,
	hobbies, favorite_color, num_of_seats, motor_type, created_at`

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements records.Appender. The returned reference is the
// numeric row id used by sync messages.
func (r *SQLiteRepository) Append(ctx context.Context, s core.SubmissionRecord) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	hobbies, err := json.Marshal(append([]string{}, s.Hobbies...))
	if err != nil {
		return "", fmt.Errorf("encode hobbies: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO submissions
		(public_id, full_name, gender, email, birth_date, address, city, country,
		 hobbies, favorite_color, num_of_seats, motor_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.FullName, string(s.Gender), s.Email, s.BirthDate.String(), s.Address, s.City, s.Country,
		string(hobbies), s.FavoriteColor, s.NumOfSeats, s.MotorType, s.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read insert id: %w", err)
	}

	slog.InfoContext(ctx, "Submission saved to SQLite",
		"id", id,
		"public_id", s.ID,
		"motor_type", s.MotorType,
		"favorite_color", s.FavoriteColor)

	return strconv.FormatInt(id, 10), nil
}

// Load implements records.Loader, returning submissions in insertion order.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.SubmissionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := []core.SubmissionRecord{}
	for rows.Next() {
		_, rec, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// GetSubmission returns a single submission by row id.
func (r *SQLiteRepository) GetSubmission(ctx context.Context, id int64) (core.SubmissionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	_, rec, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SubmissionRecord{}, fmt.Errorf("get submission %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.SubmissionRecord{}, err
	}
	return rec, nil
}

// Count returns the number of stored submissions.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// GetPendingSync returns submissions that still need mirroring, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, version, created_at FROM submissions
		WHERE sync_status = ? ORDER BY id LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending submissions: %w", err)
	}
	defer rows.Close()

	var out []PendingSubmission
	for rows.Next() {
		var (
			p       PendingSubmission
			created string
		)
		if err := rows.Scan(&p.ID, &p.Version, &created); err != nil {
			return nil, fmt.Errorf("scan pending submission: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending submissions: %w", err)
	}
	return out, nil
}

// MarkSynced marks a submission as successfully mirrored
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncSynced); err != nil {
		return fmt.Errorf("mark submission synced: %w", err)
	}
	slog.InfoContext(ctx, "Submission marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a submission whose mirroring failed
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark submission sync error: %w", err)
	}
	slog.WarnContext(ctx, "Submission marked with sync error", "id", id)
	return nil
}

// SyncStatus returns the current sync state of a submission.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM submissions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync status %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("sync status %d: %w", id, err)
	}
	return status, nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	var syncedAt any
	if status == SyncSynced {
		syncedAt = r.now().UTC().Format(time.RFC3339Nano)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE submissions SET sync_status = ?, synced_at = ? WHERE id = ?`,
		status, syncedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSubmission reads one row. Damaged birth dates or hobby lists decode to
// zero values so the aggregations can skip them individually.
func scanSubmission(s scanner) (int64, core.SubmissionRecord, error) {
	var (
		id                         int64
		rec                        core.SubmissionRecord
		gender, birth, hobbies, ts string
	)
	err := s.Scan(&id, &rec.ID, &rec.FullName, &gender, &rec.Email, &birth, &rec.Address, &rec.City,
		&rec.Country, &hobbies, &rec.FavoriteColor, &rec.NumOfSeats, &rec.MotorType, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rec, err
	}
	if err != nil {
		return 0, rec, fmt.Errorf("scan submission: %w", err)
	}

	rec.Gender = core.ParseGender(gender)
	if birth != "" {
		if d, err := core.ParseDate(birth); err == nil {
			rec.BirthDate = d
		} else {
			slog.Warn("Stored submission has unparseable birth date", "id", id, "value", birth)
		}
	}
	if err := json.Unmarshal([]byte(hobbies), &rec.Hobbies); err != nil {
		slog.Warn("Stored submission has unreadable hobbies", "id", id, "error", err)
		rec.Hobbies = nil
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		rec.CreatedAt = t
	}
	return id, rec, nil
}

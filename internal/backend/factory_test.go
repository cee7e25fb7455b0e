package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carmatch/internal/config"
	"carmatch/internal/core"
)

func TestCreateMemoryBackend(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	data := `[{"fullName":"Ana","gender":"female","birthDate":"2000-01-01","hobbies":["art"],"favoriteColor":"red","numOfSeats":4,"motorType":"electric"}]`
	if err := os.WriteFile(seed, []byte(data), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedPath: seed})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	recs, err := res.Backend.Load(context.Background())
	if err != nil || len(recs) != 1 || recs[0].FullName != "Ana" {
		t.Fatalf("unexpected load %v %v", recs, err)
	}
	if res.Publisher != nil {
		t.Fatal("memory backend never publishes")
	}
	if err := res.Ping(context.Background()); err != nil {
		t.Fatalf("memory backend should always be ready: %v", err)
	}
}

func TestCreateMemoryBackendMissingSeed(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(),
		Config{Type: MemoryBackend, SeedPath: filepath.Join(t.TempDir(), "absent.json")})
	if err != nil {
		t.Fatalf("missing seed should give an empty store: %v", err)
	}
	recs, _ := res.Backend.Load(context.Background())
	if len(recs) != 0 {
		t.Fatalf("expected empty store, got %d", len(recs))
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db", "carmatch.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: dbPath})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	ctx := context.Background()
	if err := res.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	ref, err := res.Backend.Append(ctx, core.SubmissionRecord{FullName: "Bo", Hobbies: []string{"music"}})
	if err != nil || ref != "1" {
		t.Fatalf("Append = %q, %v", ref, err)
	}
	if res.Publisher != nil {
		t.Fatal("no AMQP URL means no publisher")
	}
}

func TestCreateBackendInvalid(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateBackend(context.Background(), Config{Type: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "sqlite, sheets, memory") {
		t.Fatalf("expected unknown backend error listing the valid types, got %v", err)
	}
	if _, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected error for sqlite without a path")
	}
}

func TestCreateSheetsBackendWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:                SheetsBackend,
		GoogleSpreadsheetID: "sheet-id",
		GoogleSheetName:     "Submissions",
	})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{DataBackend: "memory", DataDirectory: "seed", SeedFile: "s.json"}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != MemoryBackend || cfg.SeedPath != filepath.Join("seed", "s.json") {
		t.Fatalf("unexpected config %+v", cfg)
	}

	app.DataBackend = "mongo"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for invalid backend")
	}
}

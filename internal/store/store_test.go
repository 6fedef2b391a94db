package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/statements/internal/core"
)

// ----------------------------------------------------------------------------
// Fake database
// ----------------------------------------------------------------------------

type call struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []call
	tag     string
	execErr error
	rows    [][]any
	row     []any
	rowErr  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, call{sql, args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.execs = append(f.execs, call{sql, args})
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.execs = append(f.execs, call{sql, args})
	return fakeRow{values: f.row, err: f.rowErr}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.rows[r.pos], dest)
}

func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

// ----------------------------------------------------------------------------
// Schemas
// ----------------------------------------------------------------------------

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	if err := New(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "normalization_runs") {
		t.Errorf("Migrate() did not execute the embedded schema")
	}

	db.execErr = errors.New("boom")
	if err := New(db).Migrate(context.Background()); err == nil || !strings.Contains(err.Error(), "migrate") {
		t.Errorf("Migrate() error = %v, want wrapped", err)
	}
}

func TestListSchemas(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{"bank_a", []string{"date", "amount"}},
		{"bank_b", []string{"when"}},
	}}

	defs, err := New(db).ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas() error = %v", err)
	}
	want := []core.SchemaDefinition{
		{Name: "bank_a", Keys: []string{"date", "amount"}},
		{Name: "bank_b", Keys: []string{"when"}},
	}
	if !reflect.DeepEqual(defs, want) {
		t.Errorf("ListSchemas() = %v, want %v", defs, want)
	}
}

func TestListSchemasEmpty(t *testing.T) {
	defs, err := New(&fakeDB{}).ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas() error = %v", err)
	}
	if defs == nil || len(defs) != 0 {
		t.Errorf("ListSchemas() = %#v, want empty non-nil slice", defs)
	}
}

func TestUpsertSchema(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	err := New(db).UpsertSchema(context.Background(), core.SchemaDefinition{Name: "bank_a"})
	if err != nil {
		t.Fatalf("UpsertSchema() error = %v", err)
	}
	args := db.execs[0].args
	if args[0] != "bank_a" {
		t.Errorf("name arg = %v", args[0])
	}
	if keys, ok := args[1].([]string); !ok || keys == nil {
		t.Errorf("keys arg = %#v, want non-nil []string", args[1])
	}
}

func TestDeleteSchema(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want bool
	}{
		{"deleted", "DELETE 1", true},
		{"missing", "DELETE 0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(&fakeDB{tag: tt.tag}).DeleteSchema(context.Background(), "bank_a")
			if err != nil {
				t.Fatalf("DeleteSchema() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DeleteSchema() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Runs
// ----------------------------------------------------------------------------

func TestRunFromResult(t *testing.T) {
	res := &core.Result{
		Kind:     core.ContentTabular,
		MIME:     "text/csv",
		Provider: "revolut_csv",
		Records:  []core.Record{{}, {}},
		Cast:     core.CastFailed,
		CastErr:  errors.New("amount: invalid number"),
	}

	run := RunFromResult("upload.csv", res, 1500*time.Millisecond)
	if run.Kind != "tabular" || run.Records != 2 || run.Cast != "failed" {
		t.Errorf("RunFromResult() = %+v", run)
	}
	if run.CastError != "amount: invalid number" {
		t.Errorf("CastError = %q", run.CastError)
	}
}

func TestRunJSON(t *testing.T) {
	data, err := json.Marshal(Run{Kind: "tabular", Duration: 1500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"duration_ms":1500`) || !strings.Contains(string(data), `"kind":"tabular"`) {
		t.Errorf("Marshal() = %s", data)
	}
}

func TestRecordRun(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeDB{row: []any{pgtype.Timestamptz{Time: created, Valid: true}}}

	run, err := New(db).RecordRun(context.Background(), Run{Kind: "tabular", Duration: 2 * time.Second})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if run.ID == uuid.Nil {
		t.Error("RecordRun() did not assign an ID")
	}
	if !run.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", run.CreatedAt, created)
	}

	args := db.execs[0].args
	if id, ok := args[0].(pgtype.UUID); !ok || uuid.UUID(id.Bytes) != run.ID {
		t.Errorf("id arg = %#v, want %v", args[0], run.ID)
	}
	if ms := args[8]; ms != int64(2000) {
		t.Errorf("duration arg = %v, want 2000", ms)
	}
}

func TestRecordRunError(t *testing.T) {
	db := &fakeDB{rowErr: errors.New("connection refused")}
	if _, err := New(db).RecordRun(context.Background(), Run{}); err == nil {
		t.Fatal("RecordRun() expected error")
	}
}

func TestRecentRuns(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeDB{rows: [][]any{{
		pgtype.UUID{Bytes: id, Valid: true},
		"s3.csv", "text/csv", "tabular", "revolut_csv",
		3, "applied", "", int64(250),
		pgtype.Timestamptz{Time: created, Valid: true},
	}}}

	runs, err := New(db).RecentRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentRuns() len = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != id || got.Records != 3 || got.Duration != 250*time.Millisecond || !got.CreatedAt.Equal(created) {
		t.Errorf("RecentRuns()[0] = %+v", got)
	}
	if limit := db.execs[0].args[0]; limit != 50 {
		t.Errorf("limit = %v, want default 50", limit)
	}
}

func TestPurgeRuns(t *testing.T) {
	db := &fakeDB{tag: "DELETE 4"}
	cutoff := time.Now().Add(-time.Hour)

	n, err := New(db).PurgeRuns(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PurgeRuns() error = %v", err)
	}
	if n != 4 {
		t.Errorf("PurgeRuns() = %d, want 4", n)
	}
	if db.execs[0].args[0] != cutoff {
		t.Errorf("cutoff arg = %v", db.execs[0].args[0])
	}
}

// ----------------------------------------------------------------------------
// Retention
// ----------------------------------------------------------------------------

type countingPurger struct {
	calls chan time.Time
}

func (p *countingPurger) PurgeRuns(_ context.Context, cutoff time.Time) (int64, error) {
	p.calls <- cutoff
	return 1, nil
}

func TestStartRetention(t *testing.T) {
	p := &countingPurger{calls: make(chan time.Time, 8)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartRetention(ctx, p, RetentionConfig{KeepFor: time.Hour, CheckInterval: 10 * time.Millisecond}, nil)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case cutoff := <-p.calls:
			if age := time.Since(cutoff); age < time.Hour {
				t.Errorf("cutoff age = %v, want >= 1h", age)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("purge %d not called", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StartRetention() did not stop on cancel")
	}
}

func TestRetentionDefaults(t *testing.T) {
	cfg := RetentionConfig{}.withDefaults()
	if cfg.KeepFor != 30*24*time.Hour || cfg.CheckInterval != 24*time.Hour {
		t.Errorf("withDefaults() = %+v", cfg)
	}
}

// ----------------------------------------------------------------------------
// Postgres
// ----------------------------------------------------------------------------

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	defer pool.Close()

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	name := "test_" + uuid.NewString()[:8]
	if err := s.UpsertSchema(ctx, core.SchemaDefinition{Name: name, Keys: []string{"a", "b"}}); err != nil {
		t.Fatalf("UpsertSchema() error = %v", err)
	}
	t.Cleanup(func() { _, _ = s.DeleteSchema(ctx, name) })

	defs, err := s.ListSchemas(ctx)
	if err != nil {
		t.Fatalf("ListSchemas() error = %v", err)
	}
	found := false
	for _, d := range defs {
		if d.Name == name && reflect.DeepEqual(d.Keys, []string{"a", "b"}) {
			found = true
		}
	}
	if !found {
		t.Errorf("ListSchemas() missing %s", name)
	}

	run, err := s.RecordRun(ctx, Run{Source: "test", Kind: "tabular", Provider: "unknown", Cast: "applied"})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) == 0 || runs[0].ID != run.ID {
		t.Errorf("RecentRuns()[0] is not the run just recorded")
	}
}

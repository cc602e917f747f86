package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"autoinspect/pkg/domain"
)

func testRecord(id string) domain.SavedInspection {
	v := domain.NewVehicle()
	v.Make = "Honda"
	v.Model = "Civic"
	v.Year = "2021"
	return domain.SavedInspection{
		Inspection: domain.Inspection{
			ID:             id,
			AgentName:      "J. Lopez",
			InspectionDate: time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC),
			Vehicles:       []domain.Vehicle{v},
		},
	}
}

func TestNewStoreAppliesDDLAndLoadsSnapshot(t *testing.T) {
	db, conn := newStubDB()
	conn.state["inspections"] = []byte(`{"seed-1":{"id":"seed-1","agentName":"A","inspectionDate":"2024-01-01T00:00:00Z","vehicles":[{"make":"Kia","model":"Rio","year":"2018","photos":{}}],"pdfGenerated":true}}`)
	conn.state["preferences"] = []byte(`{"default_agent_name":"A"}`)

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec, ok := store.GetInspection("seed-1")
	if !ok || !rec.PDFGenerated || rec.Vehicles[0].Model != "Rio" {
		t.Fatalf("snapshot not hydrated: ok=%v rec=%+v", ok, rec)
	}
	if val, _ := store.Preference("default_agent_name"); val != "A" {
		t.Fatal("preferences not hydrated")
	}

	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("state table DDL not applied, execs: %v", conn.execs)
	}
}

func TestRunInTransactionPersistsSnapshot(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.PutInspection(testRecord("rec-1")); err != nil {
			return err
		}
		return tx.SetPreference("default_agent_name", "J. Lopez")
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	if !strings.Contains(string(conn.state["inspections"]), `"rec-1"`) {
		t.Fatalf("inspections bucket not written: %s", conn.state["inspections"])
	}
	if !strings.Contains(string(conn.state["preferences"]), "J. Lopez") {
		t.Fatalf("preferences bucket not written: %s", conn.state["preferences"])
	}

	// A second store on the same database sees the persisted state.
	reopened, err := NewStore("ignored", nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.GetInspection("rec-1"); !ok {
		t.Fatal("record lost across reopen")
	}
}

func TestRunInTransactionStopsOnUserError(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	userErr := fmt.Errorf("user fail")
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return userErr }); err == nil || !strings.Contains(err.Error(), "user fail") {
		t.Fatalf("expected user error, got %v", err)
	}
	if len(conn.state) != 0 {
		t.Fatalf("state written despite user error: %v", conn.state)
	}
}

func TestDiskFullSurfacesAsQuotaError(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.diskFull = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.PutInspection(testRecord("rec-1"))
		return err
	})
	if err == nil {
		t.Fatal("expected persist failure")
	}
	if !domain.IsQuotaExceeded(err) {
		t.Fatalf("disk-full not mapped to quota error: %v", err)
	}
}

func TestNewStoreOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return nil, fmt.Errorf("open fail")
	})
	defer restore()
	if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "open fail") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStorePingError(t *testing.T) {
	db, conn := newStubDB()
	conn.failPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStoreRejectsCorruptSnapshot(t *testing.T) {
	db, conn := newStubDB()
	conn.state["inspections"] = []byte("not-json")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "decode inspections") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestMapEngineErr(t *testing.T) {
	full := mapEngineErr("commit", &pgconn.PgError{Code: "53100", Message: "disk full"})
	if !domain.IsQuotaExceeded(full) {
		t.Fatalf("53100 not mapped to quota: %v", full)
	}
	generic := mapEngineErr("commit", fmt.Errorf("syntax error"))
	if domain.IsQuotaExceeded(generic) {
		t.Fatalf("generic error mapped to quota: %v", generic)
	}
}

// --- stub driver helpers ---

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type stubConn struct {
	execs    []string
	state    map[string][]byte
	failPing bool
	diskFull bool
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{state: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		if c.diskFull {
			return nil, &pgconn.PgError{Code: "53100", Message: "could not extend file: No space left on device"}
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.state[bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	}
	return driver.RowsAffected(0), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToLower(query), "from state") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	buckets := make([]string, 0, len(c.state))
	for b := range c.state {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	rows := make([][]driver.Value, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []driver.Value{b, append([]byte(nil), c.state[b]...)})
	}
	return &stubRows{cols: []string{"bucket", "payload"}, rows: rows}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// fakeDB is a database/sql driver that knows a fixed set of conversation ids.
// Existence checks and counts are answered from that set; turn queries return
// no rows. Every statement is recorded.
type fakeDB struct {
	mu            sync.Mutex
	conversations map[string]bool
	statements    []string
}

func newFakeDB(t *testing.T, ids ...string) (*sql.DB, *fakeDB) {
	t.Helper()
	f := &fakeDB{conversations: map[string]bool{}}
	for _, id := range ids {
		f.conversations[id] = true
	}
	db := sql.OpenDB(f)
	t.Cleanup(func() { db.Close() })
	return db, f
}

func (f *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: f}, nil }
func (f *fakeDB) Driver() driver.Driver                        { return fakeDriver{f} }

func (f *fakeDB) record(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, strings.Join(strings.Fields(query), " "))
}

func (f *fakeDB) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statements...)
}

func (f *fakeDB) exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[id]
}

type fakeDriver struct{ db *fakeDB }

func (d fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{db: d.db}, nil }

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{db: c.db, query: query}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.db.record(s.query)
	return driver.RowsAffected(0), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.db.record(s.query)
	switch {
	case strings.Contains(s.query, "SELECT EXISTS"):
		id, _ := args[0].(string)
		return &fakeRows{columns: []string{"exists"}, values: [][]driver.Value{{s.db.exists(id)}}}, nil
	case strings.Contains(s.query, "COUNT(*)"):
		return &fakeRows{columns: []string{"count"}, values: [][]driver.Value{{int64(0)}}}, nil
	case strings.Contains(s.query, "FROM turns"):
		return &fakeRows{columns: []string{"role", "content"}}, nil
	}
	return nil, errors.New("fakedb: unsupported query")
}

type fakeRows struct {
	columns []string
	values  [][]driver.Value
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if len(r.values) == 0 {
		return io.EOF
	}
	copy(dest, r.values[0])
	r.values = r.values[1:]
	return nil
}

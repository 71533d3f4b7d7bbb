// Package testutil provides a database/sql driver that keeps record tables in
// memory and understands the statements issued by sqlrecords.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync/atomic"
	"time"
)

var (
	insertRe = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+(\w+)\s*\(uuid,\s*user_uuid,\s*deleted,\s*updated_at,\s*payload\)`)
	deleteRe = regexp.MustCompile(`(?is)^\s*DELETE\s+FROM\s+(\w+)\s+WHERE\s+uuid\s*=`)
	selectRe = regexp.MustCompile(`(?is)^\s*SELECT\s+uuid,\s*payload\s+FROM\s+(\w+)`)

	driverSeq atomic.Int64
)

// Row is one stored record row.
type Row struct {
	UserUUID  string
	Deleted   bool
	UpdatedAt time.Time
	Payload   string
}

// StubConn is the single connection behind a stub DB. Fail* knobs inject
// errors; the counters record what the store did.
type StubConn struct {
	Tables map[string]map[string]Row
	Execs  []string

	Pings     int
	Commits   int
	Rollbacks int

	FailPings  int
	FailBegin  bool
	FailCommit bool
	FailTables map[string]bool
}

// NewStubDB registers a fresh driver instance and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string]map[string]Row)}
	name := fmt.Sprintf("pictor-stub-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Seed stores a row as if an earlier process had written it.
func (c *StubConn) Seed(table, uuid, payload string) {
	c.table(table)[uuid] = Row{Payload: payload}
}

// Row returns the stored row for uuid.
func (c *StubConn) Row(table, uuid string) (Row, bool) {
	row, ok := c.Tables[table][uuid]
	return row, ok
}

func (c *StubConn) table(name string) map[string]Row {
	t, ok := c.Tables[name]
	if !ok {
		t = make(map[string]Row)
		c.Tables[name] = t
	}
	return t
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements are not supported")
}

func (c *StubConn) Close() error { return nil }

func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	return stubTx{c}, nil
}

// Ping fails for the first FailPings calls.
func (c *StubConn) Ping(context.Context) error {
	c.Pings++
	if c.Pings <= c.FailPings {
		return errors.New("stub: connection refused")
	}
	return nil
}

func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if m := insertRe.FindStringSubmatch(query); m != nil {
		if c.FailTables[m[1]] {
			return nil, fmt.Errorf("stub: write to %s failed", m[1])
		}
		if len(args) != 5 {
			return nil, fmt.Errorf("stub: insert into %s expects 5 args, got %d", m[1], len(args))
		}
		uuid, _ := args[0].Value.(string)
		row := Row{Payload: fmt.Sprint(args[4].Value)}
		row.UserUUID, _ = args[1].Value.(string)
		row.Deleted, _ = args[2].Value.(bool)
		row.UpdatedAt, _ = args[3].Value.(time.Time)
		c.table(m[1])[uuid] = row
		return driver.RowsAffected(1), nil
	}
	if m := deleteRe.FindStringSubmatch(query); m != nil {
		if c.FailTables[m[1]] {
			return nil, fmt.Errorf("stub: write to %s failed", m[1])
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("stub: delete from %s expects 1 arg", m[1])
		}
		uuid, _ := args[0].Value.(string)
		if _, ok := c.Tables[m[1]][uuid]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.Tables[m[1]], uuid)
		return driver.RowsAffected(1), nil
	}
	return driver.RowsAffected(0), nil
}

func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("stub: unsupported query %q", query)
	}
	if c.FailTables[m[1]] {
		return nil, fmt.Errorf("stub: read from %s failed", m[1])
	}
	t := c.Tables[m[1]]
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := &stubRows{}
	for _, id := range ids {
		rows.values = append(rows.values, []driver.Value{id, []byte(t[id].Payload)})
	}
	return rows, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit failed")
	}
	t.conn.Commits++
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	values [][]driver.Value
	next   int
}

func (r *stubRows) Columns() []string { return []string{"uuid", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

package ledger

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Ledger is the durable, single-writer mapping of txid to Transaction.
// It is the only shared mutable resource in the system and is owned
// exclusively by the Monitor process.
type Ledger struct {
	conn *sql.DB
}

// Open opens (and migrates) the SQLite-backed ledger at path. Use
// ":memory:" for tests.
func Open(path string) (*Ledger, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	// A single writer lane: the ledger serializes all mutations through
	// one connection so concurrent confirms on the same txid can never
	// race past each other.
	conn.SetMaxOpenConns(1)

	l := &Ledger{conn: conn}
	if err := l.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

func (l *Ledger) migrate() error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := l.conn.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

// Conn exposes the underlying *sql.DB.
func (l *Ledger) Conn() *sql.DB {
	return l.conn
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testScope = Scope{FlowName: "corps-flow", Environment: "test"}

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTime returns a fixed UTC instant offset by minutes.
func testTime(minutes int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

// insertTestFiling writes a business, one filing and its event linkage.
func insertTestFiling(t *testing.T, s *Store, identifier string, filingID int64, eventIDs ...int64) {
	t.Helper()
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	var businessID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM businesses WHERE identifier = ?", identifier).Scan(&businessID)
	if errors.Is(err, sql.ErrNoRows) {
		businessID, err = tx.NextID(ctx, IDBusiness)
		require.NoError(t, err)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO businesses (id, identifier, legal_name, legal_type, state, last_modified)
			VALUES (?, ?, ?, ?, ?, ?)
		`, businessID, identifier, "TEST CO-OP", "CP", "ACTIVE", testTime(0))
	}
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO filings (id, business_id, filing_type, status, effective_date, filing_json, doc_hash, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, filingID, businessID, "annualReport", "COMPLETED", testTime(0), "{}", "sha256:test", "COLIN")
	require.NoError(t, err)

	for _, id := range eventIDs {
		_, err = tx.ExecContext(ctx, "INSERT INTO colin_event_ids (colin_event_id, filing_id) VALUES (?, ?)", id, filingID)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

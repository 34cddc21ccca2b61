// Package store is the relational backing store for court decisions.
// It is the system of record: shards are rebuildable projections of it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	jerrors "github.com/jurisearch/jurisearch/internal/errors"
)

// Decision is one court decision row.
type Decision struct {
	ID        int64  `json:"id"`
	Summary   string `json:"summary"`
	FullText  string `json:"full_text,omitempty"`
	Court     string `json:"court"`
	DecidedAt string `json:"decided_at"`

	// DetectedArea is empty until the indexer classifies the decision.
	DetectedArea string `json:"detected_area,omitempty"`
}

// snippetLength bounds the result snippet taken from the summary.
const snippetLength = 200

// EmbeddingText returns the text fed to the embedder.
func (d Decision) EmbeddingText() string {
	return d.Summary
}

// Snippet returns the summary truncated for result presentation.
func (d Decision) Snippet() string {
	runes := []rune(d.Summary)
	if len(runes) <= snippetLength {
		return d.Summary
	}
	return string(runes[:snippetLength])
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id            INTEGER PRIMARY KEY,
    summary       TEXT NOT NULL,
    full_text     TEXT,
    court         TEXT NOT NULL DEFAULT '',
    decided_at    TEXT NOT NULL DEFAULT '',
    detected_area TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_area ON decisions(detected_area);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);

CREATE TABLE IF NOT EXISTS engine_state (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store wraps the SQLite database holding decisions and indexer state.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the backing store at path. An empty path opens
// an in-memory database for tests.
func New(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, jerrors.BackingStoreUnavailable(fmt.Errorf("create database directory: %w", err))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}

	// Single connection: SQLite has one writer, and modernc.org/sqlite
	// in-memory databases are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Pragmas must be set via statements; modernc.org/sqlite ignores
	// DSN parameters.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, jerrors.BackingStoreUnavailable(fmt.Errorf("set pragma: %w", err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, jerrors.BackingStoreUnavailable(fmt.Errorf("create schema: %w", err))
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDecisions upserts decisions in one transaction. Empty detected
// areas are stored as NULL so they count as unclassified.
func (s *Store) SaveDecisions(ctx context.Context, decisions []Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decisions (id, summary, full_text, court, decided_at, detected_area)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			full_text = excluded.full_text,
			court = excluded.court,
			decided_at = excluded.decided_at,
			detected_area = excluded.detected_area`)
	if err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range decisions {
		_, err := stmt.ExecContext(ctx, d.ID, d.Summary, nullable(d.FullText), d.Court, d.DecidedAt, nullable(d.DetectedArea))
		if err != nil {
			return jerrors.BackingStoreUnavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	return nil
}

// FetchOptions filters a decision fetch.
type FetchOptions struct {
	// Area restricts to one detected area when non-empty.
	Area string
	// UnclassifiedOnly restricts to decisions with no detected area.
	UnclassifiedOnly bool
	// Limit caps the result count (0 = no limit).
	Limit int
}

// FetchDecisions returns decisions most recent first.
func (s *Store) FetchDecisions(ctx context.Context, opts FetchOptions) ([]Decision, error) {
	var (
		conds []string
		args  []any
	)
	if opts.UnclassifiedOnly {
		conds = append(conds, "detected_area IS NULL")
	} else if opts.Area != "" {
		conds = append(conds, "detected_area = ?")
		args = append(args, opts.Area)
	}

	query := "SELECT id, summary, full_text, court, decided_at, detected_area FROM decisions"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY decided_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return s.queryDecisions(ctx, query, args...)
}

// LiveCandidates returns the decisions the live-fallback path scores for
// an area: those detected in the area plus those not yet classified,
// most recent first.
func (s *Store) LiveCandidates(ctx context.Context, area string, limit int) ([]Decision, error) {
	query := `
		SELECT id, summary, full_text, court, decided_at, detected_area
		FROM decisions
		WHERE detected_area = ? OR detected_area IS NULL
		ORDER BY decided_at DESC, id DESC`
	args := []any{area}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryDecisions(ctx, query, args...)
}

func (s *Store) queryDecisions(ctx context.Context, query string, args ...any) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []Decision
	for rows.Next() {
		var (
			d        Decision
			fullText sql.NullString
			area     sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Summary, &fullText, &d.Court, &d.DecidedAt, &area); err != nil {
			return nil, jerrors.BackingStoreUnavailable(err)
		}
		d.FullText = fullText.String
		d.DetectedArea = area.String
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}
	return decisions, nil
}

// SetDetectedAreas records classification outcomes in one transaction.
func (s *Store) SetDetectedAreas(ctx context.Context, areas map[int64]string) error {
	if len(areas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE decisions SET detected_area = ? WHERE id = ?")
	if err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = stmt.Close() }()

	for id, area := range areas {
		if _, err := stmt.ExecContext(ctx, nullable(area), id); err != nil {
			return jerrors.BackingStoreUnavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	return nil
}

// CountUnclassified returns the number of decisions with no detected area.
func (s *Store) CountUnclassified(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions WHERE detected_area IS NULL").Scan(&n)
	if err != nil {
		return 0, jerrors.BackingStoreUnavailable(err)
	}
	return n, nil
}

// Count returns the total number of decisions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions").Scan(&n); err != nil {
		return 0, jerrors.BackingStoreUnavailable(err)
	}
	return n, nil
}

// CountByArea returns decision counts per detected area. Unclassified
// decisions appear under the empty key.
func (s *Store) CountByArea(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(detected_area, ''), COUNT(*) FROM decisions GROUP BY detected_area")
	if err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			area string
			n    int
		)
		if err := rows.Scan(&area, &n); err != nil {
			return nil, jerrors.BackingStoreUnavailable(err)
		}
		counts[area] = n
	}
	if err := rows.Err(); err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}
	return counts, nil
}

// DecisionIDsByArea returns the IDs of decisions detected in an area.
func (s *Store) DecisionIDsByArea(ctx context.Context, area string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM decisions WHERE detected_area = ? ORDER BY id", area)
	if err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, jerrors.BackingStoreUnavailable(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, jerrors.BackingStoreUnavailable(err)
	}
	return ids, nil
}

// GetState reads an engine state value. Missing keys return "".
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM engine_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", jerrors.BackingStoreUnavailable(err)
	}
	return value, nil
}

// SetState writes an engine state value.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return jerrors.BackingStoreUnavailable(err)
	}
	return nil
}

// nullable maps "" to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

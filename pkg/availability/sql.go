package availability

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLChecker treats a username as taken when a row in table has column
// equal to it (case insensitive). The driver is the caller's choice; the
// CLI and tests use modernc.org/sqlite.
type SQLChecker struct {
	db    *sql.DB
	query string
}

// NewSQLChecker validates the identifiers and prepares the lookup query.
func NewSQLChecker(db *sql.DB, table, column string) (*SQLChecker, error) {
	if db == nil {
		return nil, fmt.Errorf("availability: sql checker requires a database")
	}
	table, column = strings.TrimSpace(table), strings.TrimSpace(column)
	if !identifierPattern.MatchString(table) || !identifierPattern.MatchString(column) {
		return nil, fmt.Errorf("availability: invalid table or column name %q.%q", table, column)
	}
	return &SQLChecker{
		db:    db,
		query: fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE LOWER(%s) = LOWER(?)", table, column),
	}, nil
}

// CheckAvailability implements Checker.
func (c *SQLChecker) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, c.query, strings.TrimSpace(candidate)).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count == 0, nil
}

// EnsureDirectory creates a minimal usernames table when it does not exist
// and seeds it with taken names. Used by the CLI to bootstrap a local
// sqlite file.
func EnsureDirectory(ctx context.Context, db *sql.DB, taken []string) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS usernames (username TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("availability: create directory: %w", err)
	}
	for _, name := range taken {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO usernames (username) VALUES (?)`, name); err != nil {
			return fmt.Errorf("availability: seed %q: %w", name, err)
		}
	}
	return nil
}

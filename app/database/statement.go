package database

import (
	"context"
	"database/sql"
	"fmt"
)

// withStatement prepares query, hands the statement to fn and always
// releases it, whatever fn returns.
func withStatement(ctx context.Context, db *sql.DB, query string, fn func(stmt *sql.Stmt) error) error {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	return fn(stmt)
}

// nullString binds an empty string as NULL so that "not present" and
// "empty" stay distinguishable in storage.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

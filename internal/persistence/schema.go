// internal/persistence/schema.go
package persistence

import (
	"context"
	"fmt"
)

// Table and column names shared by the query builder and the DDL.
const (
	tableBooks     = "books"
	tableUsers     = "users"
	tableCheckouts = "checkouts"
	tableHolds     = "holds"

	colTitle    = "title"
	colAuthor   = "author"
	colUsername = "username"
	colEmail    = "email"
	colChecked  = "checked"
	colDueDate  = "due_date"
	colReturned = "returned"
)

// The DDL sticks to types both Postgres and SQLite accept, so the same
// schema serves production and the in-memory test store.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		title  TEXT PRIMARY KEY,
		author TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		email    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS checkouts (
		title    TEXT NOT NULL REFERENCES books (title),
		username TEXT NOT NULL REFERENCES users (username),
		checked  DATE NOT NULL,
		due_date DATE NOT NULL,
		returned BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (title, username, checked)
	)`,
	`CREATE TABLE IF NOT EXISTS holds (
		title    TEXT PRIMARY KEY REFERENCES books (title),
		username TEXT NOT NULL REFERENCES users (username)
	)`,
}

// CreateTables applies the schema. Statements are idempotent, so calling it
// on every startup is safe.
func (m *Manager) CreateTables(ctx context.Context) error {
	for _, stmt := range createStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

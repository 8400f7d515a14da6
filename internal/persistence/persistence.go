// internal/persistence/persistence.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"weblibrary/internal/library"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Manager reconciles an in-memory library.Library against durable rows. It
// is the only component that touches storage: Load builds a Library from the
// stored rows and Store writes the diff back in a single transaction. The
// backing store's transactional isolation is the only concurrency boundary;
// two overlapping load-mutate-store cycles race with store semantics.
type Manager struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	tracer  trace.Tracer
}

// Open acquires a database connection for the given driver ("postgres" or
// "sqlite3") and DSN. The caller must Close the manager when done.
func Open(driver, dsn string) (*Manager, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite is single-writer; one connection also keeps an in-memory
		// database alive across calls.
		db.SetMaxOpenConns(1)
	}

	return &Manager{
		db:      db,
		dialect: goqu.Dialect(driver),
		tracer:  otel.Tracer("weblibrary/persistence"),
	}, nil
}

// Close releases the database connection. Store runs each call in its own
// transaction, so there is never an uncommitted change to discard here.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Load reads the full store state into a fresh Library: all books, all
// users, the active checkouts and the holds. Options are passed through to
// library.New. A store state that violates the checkout invariants makes
// Load fail with library.ErrConsistency.
func (m *Manager) Load(ctx context.Context, opts ...library.Option) (*library.Library, error) {
	ctx, span := m.tracer.Start(ctx, "persistence.load")
	defer span.End()

	lib := library.New(opts...)

	var books []library.Book
	if err := m.selectAll(ctx, &books, tableBooks, colTitle, colAuthor); err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}
	for _, b := range books {
		lib.AddBook(b)
	}

	var users []library.User
	if err := m.selectAll(ctx, &users, tableUsers, colUsername, colEmail); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		lib.AddUser(u)
	}

	query, args, err := m.dialect.From(tableCheckouts).
		Select(colTitle, colUsername, colChecked, colDueDate, colReturned).
		Where(goqu.Ex{colReturned: false}).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build active checkouts query: %w", err)
	}
	var checkouts []library.CheckOut
	if err := m.db.SelectContext(ctx, &checkouts, query, args...); err != nil {
		return nil, fmt.Errorf("load active checkouts: %w", err)
	}
	for _, c := range checkouts {
		if err := lib.InstallCheckOut(c); err != nil {
			return nil, err
		}
	}

	var holds []library.Hold
	if err := m.selectAll(ctx, &holds, tableHolds, colTitle, colUsername); err != nil {
		return nil, fmt.Errorf("load holds: %w", err)
	}
	for _, h := range holds {
		lib.InstallHold(h.Title, h.Username)
	}

	span.SetAttributes(
		attribute.Int("books.loaded", len(books)),
		attribute.Int("users.loaded", len(users)),
		attribute.Int("checkouts.active", len(checkouts)),
		attribute.Int("holds.loaded", len(holds)),
	)
	return lib, nil
}

// Store writes lib back to the database as one atomic transaction: books and
// users are inserted by identity diff, checkouts are reconciled in both
// directions (ended lending events are flagged returned, new ones inserted,
// repeats of the same identity triple reopened) and the hold table is fully
// replaced. Any failure rolls everything back. Calling Store again without
// intervening mutation has no further effect.
func (m *Manager) Store(ctx context.Context, lib *library.Library) error {
	ctx, span := m.tracer.Start(ctx, "persistence.store")
	defer span.End()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store transaction: %w", err)
	}
	defer tx.Rollback()

	if err := m.storeBooks(ctx, tx, lib, span); err != nil {
		return err
	}
	if err := m.storeUsers(ctx, tx, lib, span); err != nil {
		return err
	}
	if err := m.storeCheckouts(ctx, tx, lib, span); err != nil {
		return err
	}
	if err := m.storeHolds(ctx, tx, lib, span); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store transaction: %w", err)
	}
	return nil
}

func (m *Manager) selectAll(ctx context.Context, dest any, table string, cols ...any) error {
	query, args, err := m.dialect.From(table).Select(cols...).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s query: %w", table, err)
	}
	return m.db.SelectContext(ctx, dest, query, args...)
}

// storeBooks inserts catalog entries the store does not know yet. Existing
// books are never updated in place; they are immutable.
func (m *Manager) storeBooks(ctx context.Context, tx *sqlx.Tx, lib *library.Library, span trace.Span) error {
	query, args, err := m.dialect.From(tableBooks).Select(colTitle).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build stored books query: %w", err)
	}
	var titles []string
	if err := tx.SelectContext(ctx, &titles, query, args...); err != nil {
		return fmt.Errorf("read stored books: %w", err)
	}
	stored := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		stored[t] = struct{}{}
	}

	inserted := 0
	for _, b := range lib.Books() {
		if _, ok := stored[b.Title]; ok {
			continue
		}
		insert, insertArgs, err := m.dialect.Insert(tableBooks).
			Rows(goqu.Record{colTitle: b.Title, colAuthor: b.Author}).
			Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build book insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("insert book %q: %w", b.Title, err)
		}
		inserted++
	}
	span.SetAttributes(attribute.Int("books.inserted", inserted))
	return nil
}

func (m *Manager) storeUsers(ctx context.Context, tx *sqlx.Tx, lib *library.Library, span trace.Span) error {
	query, args, err := m.dialect.From(tableUsers).Select(colUsername).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build stored users query: %w", err)
	}
	var usernames []string
	if err := tx.SelectContext(ctx, &usernames, query, args...); err != nil {
		return fmt.Errorf("read stored users: %w", err)
	}
	stored := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		stored[u] = struct{}{}
	}

	inserted := 0
	for _, u := range lib.Users() {
		if _, ok := stored[u.Username]; ok {
			continue
		}
		insert, insertArgs, err := m.dialect.Insert(tableUsers).
			Rows(goqu.Record{colUsername: u.Username, colEmail: u.Email}).
			Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build user insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("insert user %q: %w", u.Username, err)
		}
		inserted++
	}
	span.SetAttributes(attribute.Int("users.inserted", inserted))
	return nil
}

// checkoutID is the identity triple of a lending event. The date is
// normalized to its calendar day so values survive a database round trip.
type checkoutID struct {
	title, username, checked string
}

func identityOf(c library.CheckOut) checkoutID {
	return checkoutID{
		title:    c.Title,
		username: c.Username,
		checked:  library.Day(c.Checked).Format(time.DateOnly),
	}
}

// storeCheckouts reconciles lending events in both directions using
// identity-keyed maps. A stored active row with no matching library
// checkout ended and is flagged returned. A library checkout with no
// stored row is new; one matching a returned row is the same lending event
// happening again and is reopened instead of duplicated.
func (m *Manager) storeCheckouts(ctx context.Context, tx *sqlx.Tx, lib *library.Library, span trace.Span) error {
	query, args, err := m.dialect.From(tableCheckouts).
		Select(colTitle, colUsername, colChecked, colDueDate, colReturned).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build stored checkouts query: %w", err)
	}
	var rows []library.CheckOut
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("read stored checkouts: %w", err)
	}

	storedByID := make(map[checkoutID]library.CheckOut, len(rows))
	for _, row := range rows {
		storedByID[identityOf(row)] = row
	}
	activeByID := make(map[checkoutID]library.CheckOut)
	for _, c := range lib.ActiveCheckOuts() {
		activeByID[identityOf(c)] = c
	}

	returned, inserted, reopened := 0, 0, 0

	// Lending events that ended since the last store.
	for id, row := range storedByID {
		if row.Returned {
			continue
		}
		if _, stillActive := activeByID[id]; stillActive {
			continue
		}
		if err := m.setReturned(ctx, tx, row, true); err != nil {
			return err
		}
		returned++
	}

	// New lending events, and repeats of an already-stored identity triple.
	for id, c := range activeByID {
		if c.Returned {
			return fmt.Errorf("active checkout of %q by %q is marked returned: %w",
				c.Title, c.Username, library.ErrConsistency)
		}
		row, ok := storedByID[id]
		if !ok {
			insert, insertArgs, err := m.dialect.Insert(tableCheckouts).
				Rows(goqu.Record{
					colTitle:    c.Title,
					colUsername: c.Username,
					colChecked:  library.Day(c.Checked),
					colDueDate:  library.Day(c.DueDate),
					colReturned: false,
				}).
				Prepared(true).ToSQL()
			if err != nil {
				return fmt.Errorf("build checkout insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
				return fmt.Errorf("insert checkout of %q by %q: %w", c.Title, c.Username, err)
			}
			inserted++
			continue
		}
		if row.Returned {
			if err := m.setReturned(ctx, tx, row, false); err != nil {
				return err
			}
			reopened++
		}
	}

	span.SetAttributes(
		attribute.Int("checkouts.returned", returned),
		attribute.Int("checkouts.inserted", inserted),
		attribute.Int("checkouts.reopened", reopened),
	)
	return nil
}

func (m *Manager) setReturned(ctx context.Context, tx *sqlx.Tx, row library.CheckOut, returned bool) error {
	update, args, err := m.dialect.Update(tableCheckouts).
		Set(goqu.Record{colReturned: returned}).
		Where(goqu.Ex{
			colTitle:    row.Title,
			colUsername: row.Username,
			colChecked:  row.Checked,
		}).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build checkout update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return fmt.Errorf("update checkout of %q by %q: %w", row.Title, row.Username, err)
	}
	return nil
}

// storeHolds replaces the hold table wholesale. Holds carry no history worth
// preserving, unlike checkouts.
func (m *Manager) storeHolds(ctx context.Context, tx *sqlx.Tx, lib *library.Library, span trace.Span) error {
	del, delArgs, err := m.dialect.Delete(tableHolds).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build holds delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("clear holds: %w", err)
	}

	holds := lib.Holds()
	for _, h := range holds {
		insert, insertArgs, err := m.dialect.Insert(tableHolds).
			Rows(goqu.Record{colTitle: h.Title, colUsername: h.Username}).
			Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build hold insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("insert hold on %q: %w", h.Title, err)
		}
	}
	span.SetAttributes(attribute.Int("holds.stored", len(holds)))
	return nil
}

// internal/library/library.go
package library

import (
	"fmt"
	"sort"
	"time"
)

// DefaultCheckoutDays is the lending period applied when no override is
// configured.
const DefaultCheckoutDays = 30

// Library is the in-memory authoritative lending state. It owns four
// mappings keyed by natural identity (title, username) and enforces the
// lending rules on every mutation. It never touches durable storage;
// persistence.Manager loads and stores it.
//
// Every operation validates its preconditions fully before touching any
// mapping, so a failed call leaves the state unchanged.
type Library struct {
	books      map[string]Book
	users      map[string]User
	checkedOut map[string]CheckOut // keyed by title; absence = available
	holds      map[string]string   // title -> holder username

	checkoutDays int
	now          func() time.Time
}

// Option configures a Library.
type Option func(*Library)

// WithCheckoutDays overrides the default lending period.
func WithCheckoutDays(days int) Option {
	return func(l *Library) {
		l.checkoutDays = days
	}
}

// WithClock overrides the time source; tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

// New creates an empty Library.
func New(opts ...Option) *Library {
	l := &Library{
		books:        make(map[string]Book),
		users:        make(map[string]User),
		checkedOut:   make(map[string]CheckOut),
		holds:        make(map[string]string),
		checkoutDays: DefaultCheckoutDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddBook inserts or overwrites the catalog entry for b.Title.
func (l *Library) AddBook(b Book) {
	l.books[b.Title] = b
}

// AddUser inserts or overwrites the user record for u.Username.
func (l *Library) AddUser(u User) {
	l.users[u.Username] = u
}

// HasBook reports whether title is in the catalog.
func (l *Library) HasBook(title string) bool {
	_, ok := l.books[title]
	return ok
}

// HasUser reports whether username is registered.
func (l *Library) HasUser(username string) bool {
	_, ok := l.users[username]
	return ok
}

// User returns the user record for username.
func (l *Library) User(username string) (User, bool) {
	u, ok := l.users[username]
	return u, ok
}

// Books returns all catalog entries ordered by title.
func (l *Library) Books() []Book {
	books := make([]Book, 0, len(l.books))
	for _, b := range l.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books
}

// Users returns all registered users ordered by username.
func (l *Library) Users() []User {
	users := make([]User, 0, len(l.users))
	for _, u := range l.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// Available reports whether title has no active checkout. Titles missing
// from the catalog entirely read as available; this looseness is intentional
// and callers that care about existence must check HasBook themselves.
func (l *Library) Available(title string) bool {
	_, ok := l.checkedOut[title]
	return !ok
}

// CheckOut lends title to username until today plus the lending period.
// If username currently holds the title, the hold is fulfilled and removed
// as part of the same operation.
func (l *Library) CheckOut(title, username string) error {
	if !l.HasUser(username) {
		return fmt.Errorf("cannot check out %q for unknown user %q: %w", title, username, ErrNotFound)
	}
	if !l.Available(title) {
		return fmt.Errorf("cannot check out %q: %w: already checked out", title, ErrConflict)
	}

	checked := Day(l.now())
	l.checkedOut[title] = CheckOut{
		Title:    title,
		Username: username,
		Checked:  checked,
		DueDate:  checked.AddDate(0, 0, l.checkoutDays),
	}
	if l.HeldBy(title) == username {
		delete(l.holds, title) // borrowing fulfills one's own hold
	}
	return nil
}

// Return closes the active checkout for title. A hold on the title survives
// the return; the holder still has to check the book out themselves.
func (l *Library) Return(title string) error {
	if _, ok := l.checkedOut[title]; !ok {
		return fmt.Errorf("cannot return %q: %w: not checked out", title, ErrNotFound)
	}
	delete(l.checkedOut, title)
	return nil
}

// Hold reserves the checked-out title for username. Repeating a hold with
// the same username is a no-op; everything else that conflicts with an
// existing hold or the borrower fails.
func (l *Library) Hold(title, username string) error {
	if l.Available(title) {
		return fmt.Errorf("cannot hold %q: %w: book is available", title, ErrConflict)
	}
	if holder := l.HeldBy(title); holder != "" {
		if holder == username {
			return nil
		}
		return fmt.Errorf("cannot hold %q: %w: already held by %q", title, ErrConflict, holder)
	}
	if l.CheckedBy(title) == username {
		return fmt.Errorf("cannot hold %q: %w: %q is the current borrower", title, ErrConflict, username)
	}
	l.holds[title] = username
	return nil
}

// RemoveHold removes the hold on title. Calling it for a title without a
// hold is a precondition violation, reported as ErrConsistency.
func (l *Library) RemoveHold(title string) error {
	if _, ok := l.holds[title]; !ok {
		return fmt.Errorf("cannot remove hold on %q: %w: no hold exists", title, ErrConsistency)
	}
	delete(l.holds, title)
	return nil
}

// CheckedBy returns the current borrower of title, or "" when the title has
// no active checkout.
func (l *Library) CheckedBy(title string) string {
	return l.checkedOut[title].Username
}

// CheckedDate returns the date title was checked out, or the zero time.
func (l *Library) CheckedDate(title string) time.Time {
	return l.checkedOut[title].Checked
}

// DueDate returns the date title is due back, or the zero time.
func (l *Library) DueDate(title string) time.Time {
	return l.checkedOut[title].DueDate
}

// IsOverdue reports whether the active checkout for title is due today or
// earlier. Titles without an active checkout are never overdue.
func (l *Library) IsOverdue(title string) bool {
	c, ok := l.checkedOut[title]
	if !ok {
		return false
	}
	return !c.DueDate.After(Day(l.now()))
}

// HeldBy returns the holder of title, or "" when no hold exists.
func (l *Library) HeldBy(title string) string {
	return l.holds[title]
}

// IsHeld reports whether title has a hold.
func (l *Library) IsHeld(title string) bool {
	return l.HeldBy(title) != ""
}

// ActiveCheckOuts returns the current active checkouts ordered by title.
func (l *Library) ActiveCheckOuts() []CheckOut {
	checkouts := make([]CheckOut, 0, len(l.checkedOut))
	for _, c := range l.checkedOut {
		checkouts = append(checkouts, c)
	}
	sort.Slice(checkouts, func(i, j int) bool { return checkouts[i].Title < checkouts[j].Title })
	return checkouts
}

// Holds returns the current holds ordered by title.
func (l *Library) Holds() []Hold {
	holds := make([]Hold, 0, len(l.holds))
	for title, username := range l.holds {
		holds = append(holds, Hold{Title: title, Username: username})
	}
	sort.Slice(holds, func(i, j int) bool { return holds[i].Title < holds[j].Title })
	return holds
}

// InstallCheckOut places a checkout loaded from storage into the active set,
// verifying the invariants any valid store state must satisfy: the title is
// known, has no other active checkout, and the record is not marked
// returned. Violations are fatal consistency failures, not user errors.
func (l *Library) InstallCheckOut(c CheckOut) error {
	if c.Returned {
		return fmt.Errorf("checkout of %q by %q is marked returned: %w", c.Title, c.Username, ErrConsistency)
	}
	if !l.HasBook(c.Title) {
		return fmt.Errorf("checkout references unknown book %q: %w", c.Title, ErrConsistency)
	}
	if !l.Available(c.Title) {
		return fmt.Errorf("second active checkout for %q: %w", c.Title, ErrConsistency)
	}
	l.checkedOut[c.Title] = c
	return nil
}

// InstallHold places a hold loaded from storage into the hold map without
// re-validating the lending rules.
func (l *Library) InstallHold(title, username string) {
	l.holds[title] = username
}

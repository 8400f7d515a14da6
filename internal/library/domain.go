// internal/library/domain.go
package library

import "time"

// Book is a catalog entry, keyed by title. Books are immutable once added
// and are never deleted.
type Book struct {
	Title  string `json:"title" db:"title"`
	Author string `json:"author" db:"author"`
}

// User is a registered borrower, keyed by username.
type User struct {
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
}

// CheckOut is one lending event. Records are never deleted: returning a
// book only flips Returned, so lending history is preserved.
type CheckOut struct {
	Title    string    `json:"title" db:"title"`
	Username string    `json:"username" db:"username"`
	Checked  time.Time `json:"checked" db:"checked"`
	DueDate  time.Time `json:"due_date" db:"due_date"`
	Returned bool      `json:"returned" db:"returned"`
}

// Same reports whether two checkouts describe the same lending event:
// same title, same borrower, same checkout date.
func (c CheckOut) Same(other CheckOut) bool {
	return c.Title == other.Title &&
		c.Username == other.Username &&
		Day(c.Checked).Equal(Day(other.Checked))
}

// Hold is a single-slot reservation on a checked-out title. At most one
// hold exists per title; there is no queue.
type Hold struct {
	Title    string `json:"title" db:"title"`
	Username string `json:"username" db:"username"`
}

// Day truncates t to its calendar date. Checkout and due dates are dates,
// not instants.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// internal/web/entries.go
package web

import (
	"time"

	"weblibrary/internal/library"
)

// Entry is the per-book view record the page and the JSON listing render.
// Borrower, DueDate and Overdue are only set for unavailable books; Holder
// only when a hold exists.
type Entry struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
	Borrower  string `json:"borrower,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
	Overdue   bool   `json:"overdue"`
	Holder    string `json:"holder,omitempty"`
}

// BuildEntries projects the library state into displayable entries, ordered
// by title.
func BuildEntries(lib *library.Library) []Entry {
	books := lib.Books()
	entries := make([]Entry, 0, len(books))
	for _, b := range books {
		entry := Entry{
			Title:     b.Title,
			Author:    b.Author,
			Available: lib.Available(b.Title),
		}
		if !entry.Available {
			entry.Borrower = lib.CheckedBy(b.Title)
			entry.DueDate = lib.DueDate(b.Title).Format(time.DateOnly)
			entry.Overdue = lib.IsOverdue(b.Title)
		}
		if lib.IsHeld(b.Title) {
			entry.Holder = lib.HeldBy(b.Title)
		}
		entries = append(entries, entry)
	}
	return entries
}

// internal/notify/notify.go
package notify

import (
	"time"

	"weblibrary/internal/library"
)

// Notice describes one overdue book and the borrower to remind.
type Notice struct {
	Title    string
	Username string
	Email    string
	DueDate  time.Time
}

// Scan walks the catalog and collects a notice for every overdue active
// checkout, ordered by title.
func Scan(lib *library.Library) []Notice {
	var notices []Notice
	for _, b := range lib.Books() {
		if !lib.IsOverdue(b.Title) {
			continue
		}
		username := lib.CheckedBy(b.Title)
		user, _ := lib.User(username)
		notices = append(notices, Notice{
			Title:    b.Title,
			Username: username,
			Email:    user.Email,
			DueDate:  lib.DueDate(b.Title),
		})
	}
	return notices
}

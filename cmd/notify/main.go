// cmd/notify/main.go
package main

import (
	"context"
	"log"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"weblibrary/internal/config"
	"weblibrary/internal/library"
	"weblibrary/internal/notify"
	"weblibrary/internal/persistence"
)

// Sends an overdue reminder to every borrower holding a book past its due
// date. Meant to run from cron.
func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	store, err := persistence.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	lib, err := store.Load(ctx, library.WithCheckoutDays(cfg.CheckoutDays))
	if err != nil {
		log.Fatalf("Failed to load library: %v", err)
	}

	sender := notify.SendmailSender{
		Path:        cfg.SendmailPath,
		SenderName:  cfg.OverdueSenderName,
		SenderEmail: cfg.OverdueSenderEmail,
		Subject:     cfg.OverdueSubject,
	}

	for _, n := range notify.Scan(lib) {
		if err := sender.Send(ctx, n); err != nil {
			log.Printf("Failed to notify %s about %q: %v", n.Username, n.Title, err)
			continue
		}
		log.Printf("Notified %s about %q (due %s)", n.Username, n.Title, n.DueDate.Format("2006-01-02"))
	}
}

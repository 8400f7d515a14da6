// internal/notify/sender.go
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Sender delivers an overdue notice to its borrower.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// SendmailSender delivers notices through the local sendmail binary.
type SendmailSender struct {
	Path        string // sendmail binary, e.g. /usr/sbin/sendmail
	SenderName  string
	SenderEmail string
	Subject     string
}

// Send pipes a plain-text reminder into sendmail. It fails when the user has
// no email address on record.
func (s SendmailSender) Send(ctx context.Context, n Notice) error {
	if n.Email == "" {
		return fmt.Errorf("no email address on record for user %q", n.Username)
	}

	msg := fmt.Sprintf("Subject: %s\n\nThe book %q was due back on %s. Please return it.\n",
		s.Subject, n.Title, n.DueDate.Format(time.DateOnly))

	cmd := exec.CommandContext(ctx, s.Path, "-F", s.SenderName, "-f", s.SenderEmail, n.Email)
	cmd.Stdin = strings.NewReader(msg)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sendmail to %s: %w: %s", n.Email, err, out)
	}
	return nil
}

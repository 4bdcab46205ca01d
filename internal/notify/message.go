package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender delivers a message once. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// TicketUpdate builds the message sent to a ticket's creator when a history
// entry changes its status.
func TicketUpdate(to string, ticketID string, history domain.TicketHistory) Message {
	status := ""
	if history.Status != nil {
		status = string(*history.Status)
	}
	comment := ""
	if history.Comment != nil {
		comment = *history.Comment
	}

	subject := fmt.Sprintf("Ticket #%s updated: %s", ticketID, status)

	var plain strings.Builder
	plain.WriteString("Hello,\n\n")
	fmt.Fprintf(&plain, "Ticket #%s has been updated.\n\n", ticketID)
	fmt.Fprintf(&plain, "Comment: %s\n", comment)
	fmt.Fprintf(&plain, "New status: %s\n\n", status)
	plain.WriteString("Sign in to the helpdesk for more details.\n")

	htmlBody := fmt.Sprintf(`<html>
<body>
	<p>Hello,</p>
	<p>Ticket <strong>#%s</strong> has been updated.</p>
	<p>Comment: %s</p>
	<p>New status: <strong>%s</strong></p>
	<p>Sign in to the helpdesk for more details.</p>
</body>
</html>`, html.EscapeString(ticketID), html.EscapeString(comment), html.EscapeString(status))

	return Message{
		To:        to,
		Subject:   subject,
		PlainBody: plain.String(),
		HTMLBody:  htmlBody,
	}
}

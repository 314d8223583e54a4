// Package ports declares the collaborator interfaces the pipeline consumes.
// Implementations live in internal/mailbox, internal/calendar and
// internal/billing; tests provide hand-rolled fakes.
package ports

import (
	"context"
	"time"
)

// Message is a single email message within a thread.
type Message struct {
	From string
	To   string
	Body string
	Date time.Time
}

// Thread is an email conversation as exposed by the mailbox provider.
type Thread struct {
	ID       string
	Subject  string
	Messages []Message
}

// LastMessage returns the most recent message, or a zero Message for an
// empty thread.
func (t Thread) LastMessage() Message {
	if len(t.Messages) == 0 {
		return Message{}
	}
	return t.Messages[len(t.Messages)-1]
}

// ThreadReader reads email threads from the mailbox provider.
type ThreadReader interface {
	GetThread(ctx context.Context, threadID string) (Thread, error)
}

// CreateEventParams describes a calendar event to create.
type CreateEventParams struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// CalendarWriter creates events in the external calendar and returns the
// provider-assigned event id.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, params CreateEventParams) (string, error)
}

// InvoiceLine is a single line on an invoice. UnitPriceCents is in øre.
type InvoiceLine struct {
	Description    string
	Quantity       float64
	UnitPriceCents int64
	ProductID      string
}

// CreateInvoiceParams describes an invoice draft to create.
type CreateInvoiceParams struct {
	ContactID        string
	EntryDate        time.Time
	PaymentTermsDays int
	Lines            []InvoiceLine
}

// InvoiceWriter resolves customers and creates invoices in the external
// invoicing system. FindCustomerByEmail returns apperr.NotFound when no
// customer matches.
type InvoiceWriter interface {
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (string, error)
}

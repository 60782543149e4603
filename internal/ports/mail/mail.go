package mail

import "context"

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender envía un email. Los callers lo tratan como fire-and-forget:
// un error se loguea, nunca revierte la operación que lo disparó.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

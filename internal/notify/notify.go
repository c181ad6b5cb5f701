package notify

import "context"

// Notifier is the outbound message channel the monitor publishes through.
type Notifier interface {
	// Send publishes a new report document and returns its identifier.
	Send(ctx context.Context, text string) (string, error)
	// Edit replaces the document with the given identifier in place. It
	// fails when the identifier no longer refers to an existing message.
	Edit(ctx context.Context, id, text string) error
	// Log emits a best-effort log line; errors are swallowed.
	Log(ctx context.Context, text string)
}

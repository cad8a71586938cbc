package access

import "context"

// Directory looks up subjects in the two authorized collections.
// Lookups return (nil, nil) when the subject is not found.
type Directory interface {
	FindAssistant(ctx context.Context, email string) (*Subject, error)
	FindStudent(ctx context.Context, email string) (*Subject, error)

	// CreateStudent provisions a minimal active student profile for a
	// subject first seen via QR.
	CreateStudent(ctx context.Context, id Identity) (*Subject, error)
}

// Ledger is the event log plus its materialized presence view. One
// logical ledger exists per membership class; implementations route on
// the class argument.
type Ledger interface {
	// GetPresence returns (nil, nil) when the subject has no record,
	// which the engine treats as implicitly outside.
	GetPresence(ctx context.Context, email string) (*Presence, error)

	// RegisterTransition appends the event to the class ledger and
	// upserts the presence record as one atomic unit. Either both
	// persist or neither does.
	RegisterTransition(ctx context.Context, class UserClass, ev Event, p Presence) error

	// AssistantEventsForDate returns the privileged-class ledger entries
	// for one local date, ordered by hora ascending.
	AssistantEventsForDate(ctx context.Context, fecha string) ([]Event, error)

	// ListInside returns every presence record currently marked dentro.
	ListInside(ctx context.Context) ([]Presence, error)
}

package access

import "context"

// Aggregator computes the live assistant occupancy from the day's ledger
// events. It deliberately ignores the presence table: the door policy
// count replays the ledger fresh on every evaluation rather than trusting
// a second materialized source.
type Aggregator struct {
	ledger Ledger
}

func NewAggregator(ledger Ledger) *Aggregator {
	return &Aggregator{ledger: ledger}
}

// AssistantsInside folds the date's assistant events, ordered by time,
// into each subject's last-seen kind and counts those ending on Entrada.
func (a *Aggregator) AssistantsInside(ctx context.Context, fecha string) (int, error) {
	events, err := a.ledger.AssistantEventsForDate(ctx, fecha)
	if err != nil {
		return 0, &PersistenceError{Op: "leer registros de ayudantes", Cause: err}
	}

	last := make(map[string]EventKind, len(events))
	for _, ev := range events {
		last[ev.Email] = ev.Tipo
	}

	count := 0
	for _, tipo := range last {
		if tipo == KindEntrance {
			count++
		}
	}
	return count, nil
}

package access

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transition is the outcome of one registered scan.
type Transition struct {
	Subject    Subject
	Tipo       EventKind
	Estado     PresenceState
	RegistroID string
}

// Engine computes and commits presence transitions. All ledger and
// presence writes in the system go through Register.
type Engine struct {
	dir    Directory
	ledger Ledger
	loc    *time.Location
	now    func() time.Time
	keys   *keyedMutex
}

func NewEngine(dir Directory, ledger Ledger, loc *time.Location, now func() time.Time) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{dir: dir, ledger: ledger, loc: loc, now: now, keys: newKeyedMutex()}
}

// Register resolves the subject, flips its presence state and writes the
// ledger entry plus presence update atomically. autoProvision permits
// creating a minimal student profile for subjects absent from both
// directories (the legacy QR path); without it an unresolved subject is
// rejected with no writes.
//
// Alternation is driven purely by the presence record, not by the
// calendar day: a subject still dentro from yesterday exits on its next
// scan even with no entrance event today.
func (e *Engine) Register(ctx context.Context, id Identity, autoProvision bool) (*Transition, error) {
	subject, err := e.resolve(ctx, id, autoProvision)
	if err != nil {
		return nil, err
	}

	e.keys.lock(subject.Email)
	defer e.keys.unlock(subject.Email)

	prev, err := e.ledger.GetPresence(ctx, subject.Email)
	if err != nil {
		return nil, &PersistenceError{Op: "leer estado", Cause: err}
	}

	tipo := KindEntrance
	if prev != nil && prev.Estado == StateInside {
		tipo = KindExit
	}
	return e.commit(ctx, subject, prev, tipo)
}

// CloseOut writes an exit for the subject only if it is still dentro.
// Returns (nil, nil) when no transition was needed, which lets the daily
// close job skip subjects that exited on their own in the meantime.
func (e *Engine) CloseOut(ctx context.Context, id Identity) (*Transition, error) {
	subject, err := e.resolve(ctx, id, false)
	if err != nil {
		return nil, err
	}

	e.keys.lock(subject.Email)
	defer e.keys.unlock(subject.Email)

	prev, err := e.ledger.GetPresence(ctx, subject.Email)
	if err != nil {
		return nil, &PersistenceError{Op: "leer estado", Cause: err}
	}
	if prev == nil || prev.Estado != StateInside {
		return nil, nil
	}
	return e.commit(ctx, subject, prev, KindExit)
}

// commit writes the ledger entry and presence update for the decided
// transition. Caller holds the subject's key lock.
func (e *Engine) commit(ctx context.Context, subject *Subject, prev *Presence, tipo EventKind) (*Transition, error) {
	estado := StateInside
	if tipo == KindExit {
		estado = StateOutside
	}

	now := e.now().In(e.loc)
	ev := Event{
		ID:           uuid.NewString(),
		Fecha:        now.Format("2006-01-02"),
		Hora:         now.Format("15:04:05"),
		Dia:          SpanishWeekday(now),
		Nombre:       subject.Nombre,
		Apellido:     subject.Apellido,
		Email:        subject.Email,
		Tipo:         tipo,
		AutoGenerado: true,
		CreatedAt:    now,
	}

	presence := Presence{
		Email:     subject.Email,
		Nombre:    subject.Nombre,
		Apellido:  subject.Apellido,
		Estado:    estado,
		UpdatedAt: now,
	}
	if prev != nil {
		presence.UltimaEntrada = prev.UltimaEntrada
		presence.UltimaSalida = prev.UltimaSalida
	}
	if estado == StateInside {
		t := now
		presence.UltimaEntrada = &t
	} else {
		t := now
		presence.UltimaSalida = &t
	}

	if err := e.ledger.RegisterTransition(ctx, subject.Class, ev, presence); err != nil {
		return nil, &PersistenceError{Op: "registrar transición", Cause: err}
	}

	return &Transition{
		Subject:    *subject,
		Tipo:       tipo,
		Estado:     estado,
		RegistroID: ev.ID,
	}, nil
}

// resolve checks the privileged directory first, then the general one.
func (e *Engine) resolve(ctx context.Context, id Identity, autoProvision bool) (*Subject, error) {
	email := normalizeEmail(id.Email)

	assistant, err := e.dir.FindAssistant(ctx, email)
	if err != nil {
		return nil, &PersistenceError{Op: "buscar ayudante", Cause: err}
	}
	if assistant != nil {
		return assistant, nil
	}

	student, err := e.dir.FindStudent(ctx, email)
	if err != nil {
		return nil, &PersistenceError{Op: "buscar estudiante", Cause: err}
	}
	if student != nil {
		return student, nil
	}

	if !autoProvision {
		return nil, ErrUnauthorizedSubject
	}
	created, err := e.dir.CreateStudent(ctx, Identity{
		Nombre:   id.Nombre,
		Apellido: id.Apellido,
		Email:    email,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "crear estudiante", Cause: err}
	}
	return created, nil
}

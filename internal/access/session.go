package access

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Informatica-uaint/HorariosLabInf/internal/door"
)

// Opener abstracts the door actuator gateway.
type Opener interface {
	Open(ctx context.Context) error
}

// DoorStatus reports the physical outcome of a session. Actuator
// failures land here; they never surface as the session error.
type DoorStatus struct {
	Authorized       bool
	Opened           bool
	Message          string
	AssistantsInside int
}

// SessionResult combines the logical outcome (the registered transition)
// with the physical one (the door). The two are never conflated: a
// logical failure aborts the session, a door failure does not.
type SessionResult struct {
	Transition
	StationID string
	Nonce     string
	Door      DoorStatus
}

// Orchestrator runs the full access session:
// validate → transition → policy → actuate.
type Orchestrator struct {
	validator *Validator
	engine    *Engine
	occupancy *Aggregator
	policy    Policy
	opener    Opener
	loc       *time.Location
	now       func() time.Time
}

func NewOrchestrator(v *Validator, e *Engine, a *Aggregator, p Policy, opener Opener, loc *time.Location, now func() time.Time) *Orchestrator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{validator: v, engine: e, occupancy: a, policy: p, opener: opener, loc: loc, now: now}
}

// Handle processes one scan. Validator and engine errors abort with no
// further effects; once the transition is committed the session succeeds
// regardless of what the door does.
func (o *Orchestrator) Handle(ctx context.Context, cred Credential) (*SessionResult, error) {
	claims, err := o.validator.Validate(cred)
	if err != nil {
		return nil, err
	}

	transition, err := o.engine.Register(ctx, claims.Identity, claims.AutoProvision)
	if err != nil {
		return nil, err
	}

	result := &SessionResult{
		Transition: *transition,
		StationID:  claims.StationID,
		Nonce:      claims.Nonce,
	}
	result.Door = o.driveDoor(ctx, transition.Subject.Class)
	return result, nil
}

// driveDoor evaluates the policy against the live assistant count and,
// when authorized, attempts the physical opening. Every failure past the
// committed transition is downgraded to the door status.
func (o *Orchestrator) driveDoor(ctx context.Context, class UserClass) DoorStatus {
	fecha := o.now().In(o.loc).Format("2006-01-02")
	inside, err := o.occupancy.AssistantsInside(ctx, fecha)
	if err != nil {
		log.Printf("occupancy count failed: %v", err)
		// Assistants do not depend on the count; students cannot be
		// authorized without one.
		if class == ClassStudent {
			return DoorStatus{Message: "No se pudo verificar ayudantes dentro"}
		}
		inside = 0
	}

	decision := o.policy.Evaluate(class, inside)
	status := DoorStatus{
		Authorized:       decision.Authorized,
		Message:          decision.Message,
		AssistantsInside: inside,
	}
	if !decision.Authorized || o.opener == nil {
		return status
	}

	if err := o.opener.Open(ctx); err != nil {
		log.Printf("door open failed: %v", err)
		switch {
		case errors.Is(err, door.ErrMisconfigured):
			status.Message = "Configuración de puerta incompleta"
		case errors.Is(err, door.ErrTimeout):
			status.Message = "timeout"
		default:
			status.Message = "Error al abrir puerta: " + err.Error()
		}
		return status
	}

	status.Opened = true
	return status
}

package access

import "time"

// UserClass is the membership class governing door policy.
type UserClass string

const (
	ClassAssistant UserClass = "AYUDANTE"
	ClassStudent   UserClass = "ESTUDIANTE"
	ClassUnknown   UserClass = "DESCONOCIDO"
)

// EventKind is the direction of a ledger entry.
type EventKind string

const (
	KindEntrance EventKind = "Entrada"
	KindExit     EventKind = "Salida"
)

// PresenceState mirrors the estado_usuarios.estado column.
type PresenceState string

const (
	StateInside  PresenceState = "dentro"
	StateOutside PresenceState = "fuera"
)

// Identity is the subject claim carried by a credential.
type Identity struct {
	Nombre   string
	Apellido string
	Email    string
}

// Subject is a directory entry (usuarios_ayudantes / usuarios_estudiantes).
type Subject struct {
	Nombre   string
	Apellido string
	Email    string
	Class    UserClass
	Activo   bool
}

// Event is one immutable ledger entry. Fecha and Hora are kept as the
// formatted local-date and local-time strings the original wire format
// uses ("2006-01-02" / "15:04:05").
type Event struct {
	ID           string
	Fecha        string
	Hora         string
	Dia          string
	Nombre       string
	Apellido     string
	Email        string
	Tipo         EventKind
	AutoGenerado bool
	CreatedAt    time.Time
}

// Presence is the materialized current state for one subject. It is a
// view over the ledger, mutated only by the transition engine.
type Presence struct {
	Email         string
	Nombre        string
	Apellido      string
	Estado        PresenceState
	UltimaEntrada *time.Time
	UltimaSalida  *time.Time
	UpdatedAt     time.Time
}

var spanishWeekdays = map[time.Weekday]string{
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
	time.Sunday:    "domingo",
}

// SpanishWeekday returns the lowercase Spanish name stored in the dia
// column.
func SpanishWeekday(t time.Time) string {
	return spanishWeekdays[t.Weekday()]
}

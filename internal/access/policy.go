package access

import "fmt"

// DefaultAssistantThreshold is how many assistants must be inside before
// a student may open the door.
const DefaultAssistantThreshold = 2

// Decision is the outcome of the door policy. Ephemeral; never persisted.
type Decision struct {
	Authorized bool
	Message    string
}

// Policy decides whether a subject class may trigger the door opener.
// Pure; no I/O. A zero Threshold means DefaultAssistantThreshold.
type Policy struct {
	Threshold int
}

func (p Policy) threshold() int {
	if p.Threshold > 0 {
		return p.Threshold
	}
	return DefaultAssistantThreshold
}

// Evaluate maps (class, live assistant count) to a decision. Assistants
// are always authorized; students only while enough assistants are
// inside; any other class is denied.
func (p Policy) Evaluate(class UserClass, assistantsInside int) Decision {
	switch class {
	case ClassAssistant:
		return Decision{Authorized: true, Message: "Acceso autorizado - Ayudante"}
	case ClassStudent:
		if assistantsInside >= p.threshold() {
			return Decision{
				Authorized: true,
				Message:    fmt.Sprintf("Acceso autorizado - %d ayudantes dentro", assistantsInside),
			}
		}
		return Decision{Authorized: false, Message: "Toca el timbre"}
	default:
		return Decision{Authorized: false, Message: "Tipo de usuario no válido"}
	}
}

package access

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingFields means the request lacked token or subject fields.
	ErrMissingFields = errors.New("token, nombre, apellido y email son requeridos")

	// ErrServerMisconfigured means no verification secret is provisioned.
	ErrServerMisconfigured = errors.New("servidor no configurado: falta READER_QR_SECRET")

	// ErrUnauthorizedSubject means the subject is in neither directory.
	ErrUnauthorizedSubject = errors.New("usuario no registrado")
)

// ExpiredError rejects a credential outside its freshness window. Age is
// how far past issuance the credential is; Window the allowed freshness.
type ExpiredError struct {
	Age    time.Duration
	Window time.Duration
}

func (e *ExpiredError) Error() string {
	if e.Window > 0 {
		return fmt.Sprintf("QR expirado: %s de antigüedad (ventana %s)", e.Age, e.Window)
	}
	return "QR expirado"
}

// InvalidError rejects a credential for any non-expiry verification
// failure (bad signature, malformed payload).
type InvalidError struct {
	Cause error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("QR inválido: %v", e.Cause)
}

func (e *InvalidError) Unwrap() error { return e.Cause }

// PersistenceError wraps a storage failure during the atomic transition
// unit. The unit rolls back fully; no partial ledger/presence state.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistencia %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

package access

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the tagged union of the two QR variants the readers
// produce: the signed reader token and the legacy self-describing JSON
// payload. A credential is a single-use input; it is never persisted.
type Credential interface {
	credential()
}

// SignedToken is the HS256-signed variant emitted by the lector station,
// presented together with the subject identity the kiosk claims.
type SignedToken struct {
	Token   string
	Subject Identity
}

func (SignedToken) credential() {}

// LegacyPayload is the unsigned JSON dict older clients embed directly
// in the QR image.
type LegacyPayload struct {
	Raw []byte
}

func (LegacyPayload) credential() {}

// Claims is the validated output of either variant.
type Claims struct {
	Identity
	StationID string
	Nonce     string

	// AutoProvision is set for the legacy variant, whose subjects may be
	// created on first contact.
	AutoProvision bool
}

// DefaultFreshnessWindow bounds how old an unsigned payload may be.
const DefaultFreshnessWindow = 15 * time.Second

// Validator verifies credentials. Pure over the injected clock; no side
// effects.
type Validator struct {
	Secret           string
	DefaultStationID string
	Window           time.Duration
	Now              func() time.Time
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *Validator) window() time.Duration {
	if v.Window > 0 {
		return v.Window
	}
	return DefaultFreshnessWindow
}

// Validate dispatches on the credential variant and returns the
// extracted claims.
func (v *Validator) Validate(c Credential) (*Claims, error) {
	switch cred := c.(type) {
	case SignedToken:
		return v.validateSigned(cred)
	case LegacyPayload:
		return v.validateLegacy(cred)
	default:
		return nil, &InvalidError{Cause: errors.New("unknown credential variant")}
	}
}

type readerTokenClaims struct {
	StationID string `json:"station_id"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

func (v *Validator) validateSigned(cred SignedToken) (*Claims, error) {
	sub := cred.Subject
	if cred.Token == "" || sub.Nombre == "" || sub.Apellido == "" || sub.Email == "" {
		return nil, ErrMissingFields
	}
	if v.Secret == "" {
		return nil, ErrServerMisconfigured
	}

	claims := &readerTokenClaims{}
	_, err := jwt.ParseWithClaims(cred.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(v.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &ExpiredError{}
		}
		return nil, &InvalidError{Cause: err}
	}

	stationID := claims.StationID
	if stationID == "" {
		stationID = v.DefaultStationID
	}
	return &Claims{
		Identity: Identity{
			Nombre:   strings.TrimSpace(sub.Nombre),
			Apellido: strings.TrimSpace(sub.Apellido),
			Email:    normalizeEmail(sub.Email),
		},
		StationID: stationID,
		Nonce:     claims.Nonce,
	}, nil
}

type legacyFields struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email"`
	Timestamp   int64  `json:"timestamp"`
	Expired     bool   `json:"expired"`
	Status      string `json:"status"`
	AutoRenewal bool   `json:"autoRenewal"`
}

func (v *Validator) validateLegacy(cred LegacyPayload) (*Claims, error) {
	var fields legacyFields
	if err := json.Unmarshal(cred.Raw, &fields); err != nil {
		return nil, &InvalidError{Cause: err}
	}
	if fields.Name == "" || fields.Surname == "" || fields.Email == "" {
		return nil, ErrMissingFields
	}
	if strings.EqualFold(fields.Status, "EXPIRED") || fields.Expired {
		return nil, &ExpiredError{Window: v.window()}
	}

	// Auto-renewing clients reissue continuously; they skip the freshness
	// check but never the structural checks above.
	if !fields.AutoRenewal {
		age := time.Duration(v.now().UnixMilli()-fields.Timestamp) * time.Millisecond
		if age < 0 {
			age = -age
		}
		if age > v.window() {
			return nil, &ExpiredError{Age: age, Window: v.window()}
		}
	}

	return &Claims{
		Identity: Identity{
			Nombre:   strings.TrimSpace(fields.Name),
			Apellido: strings.TrimSpace(fields.Surname),
			Email:    normalizeEmail(fields.Email),
		},
		StationID:     v.DefaultStationID,
		AutoProvision: true,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

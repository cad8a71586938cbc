package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
	"github.com/Informatica-uaint/HorariosLabInf/internal/config"
	"github.com/Informatica-uaint/HorariosLabInf/internal/db/memory"
	internalhttp "github.com/Informatica-uaint/HorariosLabInf/internal/http"
)

const httpSecret = "http-test-secret"

type openerFunc func(ctx context.Context) error

func (f openerFunc) Open(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, opener access.Opener) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SeedAssistant("Pedro", "Rojas", "pedro@uai.cl")
	store.SeedStudent("Ana", "Lopez", "ana@uai.cl")

	cfg := config.Config{
		ReaderQRSecret:  httpSecret,
		ReaderStationID: "lector-principal",
		QRWindow:        15 * time.Second,
	}
	validator := &access.Validator{
		Secret:           cfg.ReaderQRSecret,
		DefaultStationID: cfg.ReaderStationID,
		Window:           cfg.QRWindow,
	}
	engine := access.NewEngine(store, store, time.UTC, nil)
	aggregator := access.NewAggregator(store)
	policy := access.Policy{}
	orch := access.NewOrchestrator(validator, engine, aggregator, policy, opener, time.UTC, nil)
	server := internalhttp.NewServer(cfg, orch, aggregator, policy, store, nil, nil, time.UTC, nil)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func signToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"station_id": "lector-1",
		"nonce":      "nonce-1",
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLectorValidarSuccess(t *testing.T) {
	ts, _ := newTestServer(t, openerFunc(func(context.Context) error { return nil }))

	resp := postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token":    signToken(t, httpSecret, time.Minute),
		"nombre":   "Pedro",
		"apellido": "Rojas",
		"email":    "pedro@uai.cl",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Success        bool   `json:"success"`
		Tipo           string `json:"tipo"`
		Estado         string `json:"estado"`
		RegistroID     string `json:"registro_id"`
		StationID      string `json:"station_id"`
		Nonce          string `json:"nonce"`
		DoorAuthorized bool   `json:"door_authorized"`
		DoorOpened     bool   `json:"door_opened"`
	}
	decodeBody(t, resp, &body)
	if !body.Success || body.Tipo != "Entrada" || body.Estado != "dentro" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.RegistroID == "" || body.StationID != "lector-1" || body.Nonce != "nonce-1" {
		t.Fatalf("missing claim fields %+v", body)
	}
	if !body.DoorAuthorized || !body.DoorOpened {
		t.Fatalf("assistant should open the door, got %+v", body)
	}
}

func TestLectorValidarMissingFields(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token": signToken(t, httpSecret, time.Minute),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLectorValidarExpired(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token":    signToken(t, httpSecret, -time.Minute),
		"nombre":   "Pedro",
		"apellido": "Rojas",
		"email":    "pedro@uai.cl",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	decodeBody(t, resp, &body)
	if body.Reason != "expired" {
		t.Fatalf("expected reason expired, got %q", body.Reason)
	}
}

func TestLectorValidarBadSignature(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token":    signToken(t, "other-secret", time.Minute),
		"nombre":   "Pedro",
		"apellido": "Rojas",
		"email":    "pedro@uai.cl",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	decodeBody(t, resp, &body)
	if body.Reason != "invalid" {
		t.Fatalf("expected reason invalid, got %q", body.Reason)
	}
}

func TestLectorValidarUnknownSubject(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token":    signToken(t, httpSecret, time.Minute),
		"nombre":   "Nadie",
		"apellido": "Nunca",
		"email":    "nadie@uai.cl",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	decodeBody(t, resp, &body)
	if body.Reason != "not_found" {
		t.Fatalf("expected reason not_found, got %q", body.Reason)
	}
}

func TestQRValidateAutoProvision(t *testing.T) {
	ts, store := newTestServer(t, nil)

	qr, _ := json.Marshal(map[string]interface{}{
		"name":      "Nueva",
		"surname":   "Persona",
		"email":     "new@x.com",
		"timestamp": time.Now().UnixMilli(),
	})
	resp := postJSON(t, ts.URL+"/api/qr/validate", map[string]string{"qr_data": string(qr)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Success    bool              `json:"success"`
		Estudiante map[string]string `json:"estudiante"`
		Registro   map[string]string `json:"registro"`
	}
	decodeBody(t, resp, &body)
	if !body.Success || body.Registro["tipo"] != "Entrada" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Estudiante["email"] != "new@x.com" {
		t.Fatalf("expected provisioned student, got %+v", body.Estudiante)
	}
	if sub, _ := store.FindStudent(context.Background(), "new@x.com"); sub == nil {
		t.Fatalf("student profile should exist after auto-provisioning")
	}
}

func TestQRValidateExpired(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	qr, _ := json.Marshal(map[string]interface{}{
		"name":      "Ana",
		"surname":   "Lopez",
		"email":     "ana@uai.cl",
		"timestamp": time.Now().Add(-time.Minute).UnixMilli(),
	})
	resp := postJSON(t, ts.URL+"/api/qr/validate", map[string]string{"qr_data": string(qr)})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestQRValidateMissingData(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := postJSON(t, ts.URL+"/api/qr/validate", map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQRStatus(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/qr/status/nadie@uai.cl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d", resp.StatusCode)
	}

	qr, _ := json.Marshal(map[string]interface{}{
		"name": "Ana", "surname": "Lopez", "email": "ana@uai.cl",
		"timestamp": time.Now().UnixMilli(),
	})
	postJSON(t, ts.URL+"/api/qr/validate", map[string]string{"qr_data": string(qr)}).Body.Close()

	resp, err = http.Get(ts.URL + "/api/qr/status/ana@uai.cl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Presente    bool   `json:"presente"`
		ProximoTipo string `json:"proximo_tipo"`
	}
	decodeBody(t, resp, &body)
	if !body.Presente || body.ProximoTipo != "Salida" {
		t.Fatalf("expected presente with next Salida, got %+v", body)
	}
}

func TestQRStatusMixedCaseEmail(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/qr/status/Ana@UAI.cl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for mixed-case email of a known student, got %d", resp.StatusCode)
	}
	var body struct {
		Estudiante struct {
			Email string `json:"email"`
		} `json:"estudiante"`
	}
	decodeBody(t, resp, &body)
	if body.Estudiante.Email != "ana@uai.cl" {
		t.Fatalf("expected stored email, got %q", body.Estudiante.Email)
	}
}

func TestEstadoRoster(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token":    signToken(t, httpSecret, time.Minute),
		"nombre":   "Pedro",
		"apellido": "Rojas",
		"email":    "pedro@uai.cl",
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/estado")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Total    int `json:"total"`
		Usuarios []struct {
			Email  string `json:"email"`
			Estado string `json:"estado"`
		} `json:"usuarios"`
	}
	decodeBody(t, resp, &body)
	if body.Total != 1 || len(body.Usuarios) != 1 {
		t.Fatalf("expected one user inside, got %+v", body)
	}
	if body.Usuarios[0].Email != "pedro@uai.cl" || body.Usuarios[0].Estado != "dentro" {
		t.Fatalf("unexpected roster entry %+v", body.Usuarios[0])
	}
}

func TestDoorStatus(t *testing.T) {
	ts, _ := newTestServer(t, openerFunc(func(context.Context) error { return nil }))

	resp, err := http.Get(ts.URL + "/api/door/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		AssistantsInside      int  `json:"assistants_inside"`
		StudentDoorAuthorized bool `json:"student_door_authorized"`
	}
	decodeBody(t, resp, &body)
	if body.AssistantsInside != 0 || body.StudentDoorAuthorized {
		t.Fatalf("expected empty lab to deny students, got %+v", body)
	}

	postJSON(t, ts.URL+"/api/lector/validar", map[string]string{
		"token":    signToken(t, httpSecret, time.Minute),
		"nombre":   "Pedro",
		"apellido": "Rojas",
		"email":    "pedro@uai.cl",
	}).Body.Close()

	resp, err = http.Get(ts.URL + "/api/door/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	decodeBody(t, resp, &body)
	if body.AssistantsInside != 1 {
		t.Fatalf("expected one assistant inside, got %+v", body)
	}
}

func TestRegistrosHoy(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	qr, _ := json.Marshal(map[string]interface{}{
		"name": "Ana", "surname": "Lopez", "email": "ana@uai.cl",
		"timestamp": time.Now().UnixMilli(),
	})
	postJSON(t, ts.URL+"/api/qr/validate", map[string]string{"qr_data": string(qr)}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/estudiantes/registros_hoy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Total     int `json:"total"`
		Registros []struct {
			Email string `json:"email"`
			Tipo  string `json:"tipoRegistro"`
		} `json:"registros"`
	}
	decodeBody(t, resp, &body)
	if body.Total != 1 || body.Registros[0].Tipo != "entrada" {
		t.Fatalf("expected one entrada today, got %+v", body)
	}
}

func TestRegistrosEntreFechasValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/estudiantes/registros_entre_fechas")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without dates, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/estudiantes/registros_entre_fechas?inicio=ayer&fin=2026-03-16")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
	"github.com/Informatica-uaint/HorariosLabInf/internal/config"
	"github.com/Informatica-uaint/HorariosLabInf/internal/metrics"
)

// Store is the read surface the handlers need beyond the orchestrator.
type Store interface {
	FindStudent(ctx context.Context, email string) (*access.Subject, error)
	GetPresence(ctx context.Context, email string) (*access.Presence, error)
	ListInside(ctx context.Context) ([]access.Presence, error)
	LastStudentEventForDate(ctx context.Context, email, fecha string) (*access.Event, error)
	StudentEventsBetween(ctx context.Context, desde, hasta string) ([]access.Event, error)
}

type Server struct {
	cfg       config.Config
	orch      *access.Orchestrator
	occupancy *access.Aggregator
	policy    access.Policy
	store     Store
	redis     *redis.Client
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
}

func NewServer(cfg config.Config, orch *access.Orchestrator, occupancy *access.Aggregator, policy access.Policy, store Store, redisClient *redis.Client, m *metrics.Metrics, loc *time.Location, now func() time.Time) *Server {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Server{
		cfg:       cfg,
		orch:      orch,
		occupancy: occupancy,
		policy:    policy,
		store:     store,
		redis:     redisClient,
		metrics:   m,
		loc:       loc,
		now:       now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/lector/validar", s.handleLectorValidar)
	r.Post("/api/qr/validate", s.handleQRValidate)
	r.Get("/api/qr/status/{email}", s.handleQRStatus)
	r.Get("/api/estado", s.handleEstado)
	r.Get("/api/door/status", s.handleDoorStatus)

	r.Get("/api/estudiantes/registros_hoy", s.handleRegistrosHoy)
	r.Get("/api/estudiantes/registros_semana", s.handleRegistrosSemana)
	r.Get("/api/estudiantes/registros_mes", s.handleRegistrosMes)
	r.Get("/api/estudiantes/registros_entre_fechas", s.handleRegistrosEntreFechas)

	return r
}

// Handlers

type lectorRequest struct {
	Token    string `json:"token"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
}

type doorFields struct {
	DoorAuthorized   bool   `json:"door_authorized"`
	DoorOpened       bool   `json:"door_opened"`
	DoorMessage      string `json:"door_message"`
	AssistantsInside int    `json:"assistants_inside"`
}

type lectorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Tipo       string `json:"tipo"`
	Estado     string `json:"estado"`
	RegistroID string `json:"registro_id"`
	StationID  string `json:"station_id"`
	Nonce      string `json:"nonce,omitempty"`
	doorFields
}

func (s *Server) handleLectorValidar(w http.ResponseWriter, r *http.Request) {
	var req lectorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.countScan("invalid")
		writeError(w, http.StatusBadRequest, "cuerpo JSON inválido")
		return
	}

	cred := access.SignedToken{
		Token: req.Token,
		Subject: access.Identity{
			Nombre:   req.Nombre,
			Apellido: req.Apellido,
			Email:    req.Email,
		},
	}
	result, err := s.orch.Handle(r.Context(), cred)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.countScan("ok")
	s.trackNonce(r.Context(), result.Nonce)
	s.recordDoor(result.Door)

	writeJSON(w, http.StatusOK, lectorResponse{
		Success:    true,
		Message:    "Acceso registrado",
		Tipo:       string(result.Tipo),
		Estado:     string(result.Estado),
		RegistroID: result.RegistroID,
		StationID:  result.StationID,
		Nonce:      result.Nonce,
		doorFields: doorStatusFields(result.Door),
	})
}

type qrValidateRequest struct {
	QRData string `json:"qr_data"`
}

type qrValidateResponse struct {
	Success    bool              `json:"success"`
	Mensaje    string            `json:"mensaje"`
	Estudiante map[string]string `json:"estudiante"`
	Registro   map[string]string `json:"registro"`
	doorFields
}

func (s *Server) handleQRValidate(w http.ResponseWriter, r *http.Request) {
	var req qrValidateRequest
	if err := decodeJSON(r, &req); err != nil || req.QRData == "" {
		s.countScan("invalid")
		writeError(w, http.StatusBadRequest, "Datos QR requeridos")
		return
	}

	result, err := s.orch.Handle(r.Context(), access.LegacyPayload{Raw: []byte(req.QRData)})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.countScan("ok")
	s.recordDoor(result.Door)

	sub := result.Subject
	writeJSON(w, http.StatusOK, qrValidateResponse{
		Success: true,
		Mensaje: string(result.Tipo) + " registrada exitosamente",
		Estudiante: map[string]string{
			"nombre":   sub.Nombre,
			"apellido": sub.Apellido,
			"email":    sub.Email,
		},
		Registro: map[string]string{
			"id":        result.RegistroID,
			"tipo":      string(result.Tipo),
			"timestamp": s.now().In(s.loc).Format(time.RFC3339),
		},
		doorFields: doorStatusFields(result.Door),
	})
}

func (s *Server) handleQRStatus(w http.ResponseWriter, r *http.Request) {
	// Stored emails are lowercased; accept any casing in the path.
	email := strings.ToLower(chi.URLParam(r, "email"))
	student, err := s.store.FindStudent(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Estudiante no encontrado")
		return
	}

	presence, err := s.store.GetPresence(r.Context(), student.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	presente := presence != nil && presence.Estado == access.StateInside

	proximo := access.KindEntrance
	if presente {
		proximo = access.KindExit
	}

	today := s.now().In(s.loc).Format("2006-01-02")
	var ultimo map[string]string
	if last, err := s.store.LastStudentEventForDate(r.Context(), student.Email, today); err == nil && last != nil {
		ultimo = map[string]string{
			"tipo":  string(last.Tipo),
			"hora":  last.Hora,
			"fecha": last.Fecha,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"estudiante": map[string]interface{}{
			"nombre":   student.Nombre,
			"apellido": student.Apellido,
			"email":    student.Email,
			"activo":   student.Activo,
		},
		"presente":          presente,
		"ultimo_movimiento": ultimo,
		"proximo_tipo":      string(proximo),
	})
}

func (s *Server) handleEstado(w http.ResponseWriter, r *http.Request) {
	inside, err := s.store.ListInside(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}

	usuarios := make([]map[string]interface{}, 0, len(inside))
	for _, p := range inside {
		entry := map[string]interface{}{
			"nombre":   p.Nombre,
			"apellido": p.Apellido,
			"email":    p.Email,
			"estado":   string(p.Estado),
		}
		if p.UltimaEntrada != nil {
			entry["ultima_entrada"] = p.UltimaEntrada.In(s.loc).Format(time.RFC3339)
		}
		usuarios = append(usuarios, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(usuarios),
		"usuarios": usuarios,
	})
}

func (s *Server) handleDoorStatus(w http.ResponseWriter, r *http.Request) {
	today := s.now().In(s.loc).Format("2006-01-02")
	count, err := s.occupancy.AssistantsInside(r.Context(), today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	s.metricsGauge(count)

	decision := s.policy.Evaluate(access.ClassStudent, count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assistants_inside":       count,
		"student_door_authorized": decision.Authorized,
		"message":                 decision.Message,
	})
}

// Reports

func (s *Server) handleRegistrosHoy(w http.ResponseWriter, r *http.Request) {
	today := s.now().In(s.loc).Format("2006-01-02")
	s.writeStudentEvents(w, r, today, today)
}

func (s *Server) handleRegistrosSemana(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	// ISO week: Monday through Sunday.
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)
	s.writeStudentEvents(w, r, monday.Format("2006-01-02"), sunday.Format("2006-01-02"))
}

func (s *Server) handleRegistrosMes(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	last := first.AddDate(0, 1, -1)
	s.writeStudentEvents(w, r, first.Format("2006-01-02"), last.Format("2006-01-02"))
}

func (s *Server) handleRegistrosEntreFechas(w http.ResponseWriter, r *http.Request) {
	inicio := r.URL.Query().Get("inicio")
	fin := r.URL.Query().Get("fin")
	if inicio == "" || fin == "" {
		writeError(w, http.StatusBadRequest, "Se requieren las fechas de inicio y fin")
		return
	}
	if _, err := time.Parse("2006-01-02", inicio); err != nil {
		writeError(w, http.StatusBadRequest, "Formato de fecha inválido. Use YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("2006-01-02", fin); err != nil {
		writeError(w, http.StatusBadRequest, "Formato de fecha inválido. Use YYYY-MM-DD")
		return
	}
	s.writeStudentEvents(w, r, inicio, fin)
}

func (s *Server) writeStudentEvents(w http.ResponseWriter, r *http.Request, desde, hasta string) {
	events, err := s.store.StudentEventsBetween(r.Context(), desde, hasta)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}

	rows := make([]map[string]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, map[string]interface{}{
			"id":                 ev.ID,
			"fecha":              ev.Fecha,
			"horaRegistro":       ev.Hora,
			"dia":                ev.Dia,
			"nombreEstudiante":   ev.Nombre,
			"apellidoEstudiante": ev.Apellido,
			"email":              ev.Email,
			"tipoRegistro":       lowerKind(ev.Tipo),
			"autoGenerado":       ev.AutoGenerado,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     len(rows),
		"registros": rows,
	})
}

// Error mapping

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	var expired *access.ExpiredError
	var invalid *access.InvalidError
	var persistence *access.PersistenceError

	switch {
	case errors.Is(err, access.ErrMissingFields):
		s.countScan("invalid")
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrServerMisconfigured):
		s.countScan("error")
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &expired):
		s.countScan("expired")
		writeErrorReason(w, http.StatusUnauthorized, "QR expirado", "expired")
	case errors.As(err, &invalid):
		s.countScan("invalid")
		writeErrorReason(w, http.StatusBadRequest, "QR inválido", "invalid")
	case errors.Is(err, access.ErrUnauthorizedSubject):
		s.countScan("unauthorized")
		writeErrorReason(w, http.StatusForbidden, "Usuario no registrado", "not_found")
	case errors.As(err, &persistence):
		s.countScan("error")
		log.Printf("persistence error: %v", err)
		writeError(w, http.StatusInternalServerError, "Error interno")
	default:
		s.countScan("error")
		log.Printf("session error: %v", err)
		writeError(w, http.StatusInternalServerError, "Error interno")
	}
}

// Metrics helpers

func (s *Server) countScan(result string) {
	if s.metrics != nil {
		s.metrics.Scans.WithLabelValues(result).Inc()
	}
}

func (s *Server) recordDoor(d access.DoorStatus) {
	if s.metrics == nil {
		return
	}
	s.metrics.AssistantsInside.Set(float64(d.AssistantsInside))
	switch {
	case d.Opened:
		s.metrics.DoorOpens.WithLabelValues("opened").Inc()
	case d.Authorized:
		s.metrics.DoorOpens.WithLabelValues("failed").Inc()
	default:
		s.metrics.DoorOpens.WithLabelValues("denied").Inc()
	}
}

func (s *Server) metricsGauge(count int) {
	if s.metrics != nil {
		s.metrics.AssistantsInside.Set(float64(count))
	}
}

// trackNonce marks a signed token's nonce in redis so replays within the
// freshness window show up in metrics. Observability only: replays are
// not rejected, each scan is a distinct physical presentation.
func (s *Server) trackNonce(ctx context.Context, nonce string) {
	if s.redis == nil || nonce == "" {
		return
	}
	ttl := 2 * s.cfg.QRWindow
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	set, err := s.redis.SetNX(ctx, nonceKey(nonce), 1, ttl).Result()
	if err != nil {
		log.Printf("nonce tracking failed: %v", err)
		return
	}
	if !set {
		log.Printf("nonce %s replayed inside its window", nonce)
		if s.metrics != nil {
			s.metrics.NonceReplays.Inc()
		}
	}
}

func nonceKey(nonce string) string {
	return "acceso:nonce:" + nonce
}

func doorStatusFields(d access.DoorStatus) doorFields {
	return doorFields{
		DoorAuthorized:   d.Authorized,
		DoorOpened:       d.Opened,
		DoorMessage:      d.Message,
		AssistantsInside: d.AssistantsInside,
	}
}

func lowerKind(k access.EventKind) string {
	if k == access.KindEntrance {
		return "entrada"
	}
	return "salida"
}

// JSON helpers

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeErrorReason(w http.ResponseWriter, status int, message, reason string) {
	writeJSON(w, status, map[string]string{"error": message, "reason": reason})
}

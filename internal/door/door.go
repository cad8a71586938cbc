// Package door drives the physical opener over the device's HTTP control
// API. The device exposes its controllable entities as JSON; opening the
// door means locating the button entity named "abrir" and issuing a
// single press command.
package door

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrMisconfigured means host or api key are unset. Callers report
	// it in the door status instead of failing the request.
	ErrMisconfigured = errors.New("configuración de puerta incompleta")

	// ErrTargetNotFound means no button entity matches the configured
	// name on the device.
	ErrTargetNotFound = errors.New("no se encontró el botón 'abrir'")

	// ErrTimeout means the device did not complete the operation within
	// the hard deadline. The physical door state is unknown.
	ErrTimeout = errors.New("timeout al abrir puerta")
)

// DefaultTimeout bounds the whole open operation.
const DefaultTimeout = 15 * time.Second

const defaultButtonName = "abrir"

// Config locates and authenticates against the device.
type Config struct {
	Host       string
	Port       int
	DeviceName string
	APIKey     string
	ButtonName string
	Timeout    time.Duration
}

// Gateway issues door-open commands. Concurrent authorized decisions
// share one in-flight physical press; there is exactly one command per
// completed call and no automatic retry, so a stuck device fails visibly
// instead of double-triggering the latch.
type Gateway struct {
	cfg    Config
	client *http.Client
	group  singleflight.Group
}

func NewGateway(cfg Config) *Gateway {
	if cfg.ButtonName == "" {
		cfg.ButtonName = defaultButtonName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type entity struct {
	Key  int64  `json:"key"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type entitiesResponse struct {
	Entities []entity `json:"entities"`
}

// Open locates the opener button and presses it once. The operation is
// bounded by the configured timeout regardless of the caller's context.
func (g *Gateway) Open(ctx context.Context) error {
	if g.cfg.Host == "" || g.cfg.APIKey == "" {
		return ErrMisconfigured
	}

	// singleflight collapses concurrent calls into one device command;
	// every waiter observes the shared outcome. The press is bounded by
	// the configured timeout only, never by whichever caller's context
	// happened to start it.
	_, err, _ := g.group.Do("open", func() (interface{}, error) {
		pressCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Timeout)
		defer cancel()
		return nil, g.pressButton(pressCtx)
	})
	if isTimeout(err) {
		return ErrTimeout
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (g *Gateway) pressButton(ctx context.Context) error {
	target, err := g.findButton(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/button/%d/press", g.baseURL(), target.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dispositivo respondió %d al presionar '%s'", resp.StatusCode, target.Name)
	}
	return nil
}

func (g *Gateway) findButton(ctx context.Context) (*entity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL()+"/api/entities", nil)
	if err != nil {
		return nil, err
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dispositivo respondió %d al listar entidades", resp.StatusCode)
	}

	var listed entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, err
	}
	for i := range listed.Entities {
		ent := &listed.Entities[i]
		if ent.Type == "button" && strings.EqualFold(ent.Name, g.cfg.ButtonName) {
			return ent, nil
		}
	}
	return nil, ErrTargetNotFound
}

func (g *Gateway) baseURL() string {
	return fmt.Sprintf("http://%s:%d", g.cfg.Host, g.cfg.Port)
}

func (g *Gateway) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	if g.cfg.DeviceName != "" {
		req.Header.Set("X-Device-Name", g.cfg.DeviceName)
	}
}

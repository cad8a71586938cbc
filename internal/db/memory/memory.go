// Package memory provides an in-memory implementation of the directory,
// ledger and presence stores. It backs tests and secret-less dev runs;
// production uses the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
)

type Store struct {
	mu         sync.RWMutex
	assistants map[string]access.Subject
	students   map[string]access.Subject
	registros  []access.Event // assistant ledger
	estudios   []access.Event // student ledger
	presence   map[string]access.Presence
}

func NewStore() *Store {
	return &Store{
		assistants: make(map[string]access.Subject),
		students:   make(map[string]access.Subject),
		presence:   make(map[string]access.Presence),
	}
}

// SeedAssistant registers an active assistant.
func (s *Store) SeedAssistant(nombre, apellido, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistants[email] = access.Subject{
		Nombre: nombre, Apellido: apellido, Email: email,
		Class: access.ClassAssistant, Activo: true,
	}
}

// SeedStudent registers an active student.
func (s *Store) SeedStudent(nombre, apellido, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[email] = access.Subject{
		Nombre: nombre, Apellido: apellido, Email: email,
		Class: access.ClassStudent, Activo: true,
	}
}

func (s *Store) FindAssistant(_ context.Context, email string) (*access.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.assistants[email]; ok && sub.Activo {
		return &sub, nil
	}
	return nil, nil
}

func (s *Store) FindStudent(_ context.Context, email string) (*access.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.students[email]; ok && sub.Activo {
		return &sub, nil
	}
	return nil, nil
}

func (s *Store) CreateStudent(_ context.Context, id access.Identity) (*access.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.students[id.Email]
	if !ok {
		sub = access.Subject{
			Nombre: id.Nombre, Apellido: id.Apellido, Email: id.Email,
			Class: access.ClassStudent, Activo: true,
		}
		s.students[id.Email] = sub
	}
	return &sub, nil
}

func (s *Store) GetPresence(_ context.Context, email string) (*access.Presence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.presence[email]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *Store) RegisterTransition(_ context.Context, class access.UserClass, ev access.Event, p access.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if class == access.ClassAssistant {
		s.registros = append(s.registros, ev)
	} else {
		s.estudios = append(s.estudios, ev)
	}
	s.presence[p.Email] = p
	return nil
}

func (s *Store) AssistantEventsForDate(_ context.Context, fecha string) ([]access.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []access.Event
	for _, ev := range s.registros {
		if ev.Fecha == fecha {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Hora < events[j].Hora })
	return events, nil
}

func (s *Store) StudentEventsBetween(_ context.Context, desde, hasta string) ([]access.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []access.Event
	for _, ev := range s.estudios {
		if ev.Fecha >= desde && ev.Fecha <= hasta {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Fecha != events[j].Fecha {
			return events[i].Fecha > events[j].Fecha
		}
		return events[i].Hora > events[j].Hora
	})
	return events, nil
}

func (s *Store) LastStudentEventForDate(_ context.Context, email, fecha string) (*access.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *access.Event
	for i := range s.estudios {
		ev := s.estudios[i]
		if ev.Email != email || ev.Fecha != fecha {
			continue
		}
		if last == nil || ev.Hora >= last.Hora {
			last = &ev
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (s *Store) ListInside(_ context.Context) ([]access.Presence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var inside []access.Presence
	for _, p := range s.presence {
		if p.Estado == access.StateInside {
			inside = append(inside, p)
		}
	}
	sort.Slice(inside, func(i, j int) bool { return inside[i].Email < inside[j].Email })
	return inside, nil
}

// AssistantEventCount reports the assistant ledger size. Test helper.
func (s *Store) AssistantEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registros)
}

// AssistantEvents returns a copy of the assistant ledger in append
// order. Test helper.
func (s *Store) AssistantEvents() []access.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]access.Event, len(s.registros))
	copy(out, s.registros)
	return out
}

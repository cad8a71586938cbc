package jobs

import (
	"context"
	"log"
	"time"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
)

// DailyCloseConfig controls the end-of-day close-out.
type DailyCloseConfig struct {
	Enabled  bool
	CloseAt  string // local "HH:MM"
	Location *time.Location
}

// StartDailyClose launches the close-out job: once per day, at the
// configured local time, every subject still marked dentro gets a
// synthetic exit through the normal transition path, so presence never
// carries over silently between days.
func StartDailyClose(ctx context.Context, cfg DailyCloseConfig, engine *access.Engine, ledger access.Ledger) {
	if !cfg.Enabled {
		return
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	closeAt, err := time.Parse("15:04", cfg.CloseAt)
	if err != nil {
		log.Printf("daily close job disabled: bad close time %q: %v", cfg.CloseAt, err)
		return
	}

	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		lastRun := ""
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().In(loc)
				today := now.Format("2006-01-02")
				if lastRun == today {
					continue
				}
				if now.Hour() < closeAt.Hour() || (now.Hour() == closeAt.Hour() && now.Minute() < closeAt.Minute()) {
					continue
				}
				lastRun = today
				closeOut(ctx, engine, ledger)
			}
		}
	}()
}

func closeOut(ctx context.Context, engine *access.Engine, ledger access.Ledger) {
	inside, err := ledger.ListInside(ctx)
	if err != nil {
		log.Printf("daily close: list inside failed: %v", err)
		return
	}
	closed := 0
	for _, p := range inside {
		id := access.Identity{Nombre: p.Nombre, Apellido: p.Apellido, Email: p.Email}
		transition, err := engine.CloseOut(ctx, id)
		if err != nil {
			log.Printf("daily close: %s: %v", p.Email, err)
			continue
		}
		if transition != nil {
			closed++
		}
	}
	if closed > 0 {
		log.Printf("daily close: closed out %d subjects", closed)
	}
}

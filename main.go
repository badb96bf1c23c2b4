package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avallbona/patterngrid/internal/config"
	"github.com/avallbona/patterngrid/internal/database"
	"github.com/avallbona/patterngrid/internal/httpserver"
	"github.com/avallbona/patterngrid/internal/store"
)

func main() {
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := database.OpenMigrated(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()

	mem := store.NewMemoryStore()
	go reapSessions(context.Background(), mem, cfg.SessionTTL)

	srv := httpserver.New(cfg, mem, db)
	log.Info().Str("port", cfg.Port).Bool("debugRoutes", cfg.DebugRoutes).Msg("starting patterngrid")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// reapSessions drops idle sessions (and their timers) every ttl/4.
func reapSessions(ctx context.Context, st store.Store, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Reap(ctx, now.Add(-ttl)); n > 0 {
				log.Info().Int("reaped", n).Msg("idle sessions dropped")
			}
		}
	}
}

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/lectern/pkg/config"
	"github.com/shishobooks/lectern/pkg/database"
	"github.com/shishobooks/lectern/pkg/fileutils"
	"github.com/shishobooks/lectern/pkg/migrations"
	"github.com/shishobooks/lectern/pkg/pages"
	"github.com/shishobooks/lectern/pkg/server"
	"github.com/shishobooks/lectern/pkg/session"
	"github.com/shishobooks/lectern/pkg/settings"
	"github.com/shishobooks/lectern/pkg/unpack"
	"github.com/shishobooks/lectern/pkg/version"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting lectern", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := fileutils.EnsureWritableDir(cfg.CacheDir); err != nil {
		log.Err(err).Fatal("cache directory error")
	}
	log.Info("cache directory initialized", logger.Data{"path": cfg.CacheDir})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	unpackCache := unpack.NewCache(cfg.CacheDir)
	removed, err := unpackCache.CleanupStale()
	if err != nil {
		log.Err(err).Warn("failed to clean up stale extractions")
	} else if removed > 0 {
		log.Info("removed stale extractions", logger.Data{"count": removed})
	}

	settingsStore := settings.NewStore(cfg.SettingsFilePath)
	if err := settingsStore.Load(ctx); err != nil {
		log.Err(err).Fatal("settings error")
	}

	loader := session.NewFormatLoader(unpackCache, cfg.TextChunkThreshold, cfg.TextChunkSize)
	manager := session.NewManager(
		session.NewDBStore(db, cfg.DatabaseMaxRetries),
		loader,
		settingsStore,
		session.OptionsFromConfig(cfg),
	)

	srv, err := server.New(cfg, db, server.Deps{
		Manager:  manager,
		Loader:   loader,
		Unpack:   unpackCache,
		Pages:    pages.NewCache(cfg.CacheDir),
		Settings: settingsStore,
	})
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		// Extract actual port (useful when ServerPort is 0)
		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		if err := writePortFile(actualPort); err != nil {
			log.Err(err).Error("failed to write port file")
		}

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	// Open sessions get their final flush before the database goes away.
	manager.Shutdown(log.WithContext(ctx))
	log.Info("sessions closed")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// writePortFile writes the server's actual port to tmp/api.port for local
// tooling. Skips silently if tmp/ doesn't exist (e.g., in Docker).
func writePortFile(port int) error {
	if _, err := os.Stat("tmp"); os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile("tmp/api.port", []byte(strconv.Itoa(port)), 0600)
}

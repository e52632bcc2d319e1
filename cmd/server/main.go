package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/run"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tubegrab/internal/config"
	"tubegrab/internal/handlers"
	"tubegrab/internal/models"
	"tubegrab/internal/results"
	"tubegrab/internal/scheduler"
	"tubegrab/internal/storage"
	"tubegrab/internal/vault"
	"tubegrab/internal/version"
	"tubegrab/internal/worker"
	"tubegrab/internal/youtube"
)

var rootCmd = &cobra.Command{
	Use:          "tubegrab-server",
	Short:        "Asynchronous YouTube extraction service",
	Version:      version.Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Server exited")
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs := storage.NewJobRepository(db)
	cookies := storage.NewCookieRepository(db)

	cookieVault, err := vault.New(cookies, cfg.VaultKey, cfg.CookieTTL)
	if err != nil {
		return err
	}
	defer cookieVault.Stop()

	store := results.NewStore(filepath.Join(cfg.DataDir, "results"), jobs)
	ext := youtube.NewMediaExtractor(filepath.Join(cfg.DataDir, "scratch"), cfg.CaptionLanguage)

	holderID := scheduler.HolderID()
	pool := worker.NewPool(holderID, jobs, cookieVault, store, worker.Config{
		Concurrency: cfg.Workers,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	})
	for _, dt := range []models.DownloadType{
		models.DownloadAudio,
		models.DownloadVideo,
		models.DownloadTranscript,
	} {
		pool.Register(dt, worker.ExtractorHandler(ext, dt))
	}

	sched := scheduler.New(jobs, pool, holderID, cfg.PollInterval, cfg.LeaseTTL)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	jobHandler := handlers.NewJobHandler(jobs, store, cfg.MaxAttempts)
	cookieHandler := handlers.NewCookieHandler(cookieVault)
	videoHandler := handlers.NewVideoHandler()

	e.POST("/api/jobs", jobHandler.Submit)
	e.GET("/api/jobs", jobHandler.List)
	e.GET("/api/jobs/stats", jobHandler.Stats)
	e.GET("/api/jobs/:id", jobHandler.Get)
	e.GET("/api/jobs/:id/result", jobHandler.Result)
	e.POST("/api/jobs/:id/cancel", jobHandler.Cancel)

	e.POST("/api/cookies", cookieHandler.Upload)
	e.GET("/api/cookies/:owner_id", cookieHandler.Get)
	e.DELETE("/api/cookies/:owner_id", cookieHandler.Delete)

	e.GET("/api/videos/preview", videoHandler.Preview)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var group run.Group

	group.Add(func() error {
		log.WithFields(log.Fields{
			"version": version.Version,
			"port":    cfg.Port,
			"holder":  holderID,
		}).Info("Starting tubegrab server")
		err := e.Start(fmt.Sprintf(":%d", cfg.Port))
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warning("HTTP shutdown did not finish cleanly")
		}
	})

	group.Add(func() error {
		return sched.Run(ctx)
	}, func(error) {
		cancel()
	})

	group.Add(func() error {
		return cookieVault.SweepLoop(ctx, cfg.SweepInterval)
	}, func(error) {
		cancel()
	})

	group.Add(func() error {
		return retentionLoop(ctx, jobs, store, cfg.RetentionDays)
	}, func(error) {
		cancel()
	})

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = group.Run()
	if _, ok := err.(run.SignalError); ok {
		log.Info("Shutting down on signal")
		return nil
	}
	return err
}

// retentionLoop removes terminal jobs, and their published artifacts, once
// they fall past the retention window.
func retentionLoop(ctx context.Context, jobs *storage.JobRepository, store *results.Store, retentionDays int) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
			removed, err := jobs.CleanupTerminal(ctx, cutoff)
			if err != nil {
				log.WithError(err).Warning("Retention cleanup failed")
				continue
			}
			for _, jobID := range removed {
				if err := store.Discard(jobID); err != nil {
					log.WithError(err).WithField("job_id", jobID).Warning("Failed to discard artifacts")
				}
			}
			if len(removed) > 0 {
				log.WithField("removed", len(removed)).Info("Removed expired jobs")
			}
		}
	}
}

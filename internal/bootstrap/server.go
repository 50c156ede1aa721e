package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/appleboy/graceful"
)

// Run serves the application until an interrupt signal arrives. Background
// jobs (key rotation, expired-row cleanup, audit retention) share the same
// lifecycle as the HTTP server.
func (a *App) Run() {
	srv := &http.Server{
		Addr:              a.Config.ServerAddr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}
		log.Println("Server exited")
		return nil
	})

	// Signing key rotation on a fixed interval. Old keys stay published
	// until verification of their tokens can no longer occur.
	if a.Config.KeyRotationInterval > 0 {
		m.AddRunningJob(func(ctx context.Context) error {
			ticker := time.NewTicker(a.Config.KeyRotationInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := a.Keys.RotateKeys(ctx); err != nil {
						log.Printf("Scheduled key rotation failed: %v", err)
					}
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	// Hourly cleanup of dead authorization codes and refresh tokens
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := a.Authorizations.CleanupExpiredCodes(); err != nil {
					log.Printf("Failed to cleanup expired authorization codes: %v", err)
				}
				if err := a.Sessions.CleanupExpiredTokens(); err != nil {
					log.Printf("Failed to cleanup expired refresh tokens: %v", err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	// Daily audit retention sweep
	if a.Config.AuditEnabled && a.Config.AuditRetentionDays > 0 {
		retention := time.Duration(a.Config.AuditRetentionDays) * 24 * time.Hour
		m.AddRunningJob(func(ctx context.Context) error {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()

			if deleted, err := a.Audit.CleanupOldEvents(retention); err != nil {
				log.Printf("Failed to cleanup old audit events: %v", err)
			} else if deleted > 0 {
				log.Printf("Cleaned up %d old audit events", deleted)
			}

			for {
				select {
				case <-ticker.C:
					if deleted, err := a.Audit.CleanupOldEvents(retention); err != nil {
						log.Printf("Failed to cleanup old audit events: %v", err)
					} else if deleted > 0 {
						log.Printf("Cleaned up %d old audit events", deleted)
					}
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	m.AddShutdownJob(func() error {
		log.Println("Shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Audit.Shutdown(ctx)
	})

	if a.Redis != nil {
		m.AddShutdownJob(func() error {
			log.Println("Closing Redis connection...")
			return a.Redis.Close()
		})
	}

	<-m.Done()
}

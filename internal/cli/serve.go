package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/icebox-app/icebox/internal/config"
	"github.com/icebox-app/icebox/internal/engine"
	"github.com/icebox-app/icebox/internal/payment"
	"github.com/icebox-app/icebox/internal/premium"
	"github.com/icebox-app/icebox/internal/server"
	"github.com/icebox-app/icebox/internal/store"
	"github.com/icebox-app/icebox/internal/transcribe"
	"github.com/icebox-app/icebox/internal/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	wc := weather.New(cfg.Weather.BaseURL)

	var tr engine.Transcriber
	whisper := transcribe.New(cfg.Transcribe.Binary, cfg.Transcribe.Model)
	if whisper.Available() {
		tr = whisper
		fmt.Fprintf(os.Stderr, "  transcription: %s (%s)\n", whisper.Binary, whisper.Model)
	} else {
		fmt.Fprintln(os.Stderr, "  transcription: unavailable, voice notes stored raw")
	}

	eng := engine.New(db, wc, tr)
	eng.Start()
	defer eng.Stop()

	var prem *premium.Manager
	if cfg.PaymentsConfigured() {
		gw := payment.New(cfg.Payment.BaseURL, cfg.Payment.ShopID, cfg.Payment.SecretKey, cfg.Payment.ReturnURL)
		prem = premium.NewManager(db, gw)
		fmt.Fprintln(os.Stderr, "  payments: configured")
	} else {
		fmt.Fprintln(os.Stderr, "  payments: not configured, purchase routes disabled")
	}

	srv := server.New(db, eng, prem, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "icebox serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

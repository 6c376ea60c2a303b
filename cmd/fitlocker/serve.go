package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/transport/httpremote"
)

func serveCmd() *cobra.Command {
	var tokenUser string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference cloud server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := []byte(cfg.Server.SessionSecret)
			if len(secret) == 0 {
				buf := make([]byte, 32)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				secret = buf
				logging.Warn("no session secret configured, generated an ephemeral one")
			}

			if tokenUser != "" {
				token, err := httpremote.NewSessionToken(secret, tokenUser, 24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Printf("session token for %s:\n%s\n", tokenUser, token)
			}

			if cfg.MetricsAddr != "" {
				go serveMetrics(cfg.MetricsAddr)
			}

			server := httpremote.NewServer(secret)
			httpServer := &http.Server{
				Addr:              cfg.Server.ListenAddr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			logging.Info("cloud server listening",
				slog.String("addr", cfg.Server.ListenAddr),
				slog.String("secret_fingerprint", hex.EncodeToString(secret[:4])),
			)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenUser, "issue-token", "", "print a session token for the given user id on startup")
	return cmd
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	logging.Info("metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Error("metrics listener failed", slog.String("error", err.Error()))
	}
}

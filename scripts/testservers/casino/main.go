// Command casino serves a stand-in Vegas casino app for local vegasload runs:
//
//	go run ./scripts/testservers/casino --port 3000
//	go run ./cmd/vegasload --vusers 5 --iterations 20 --think-time 100ms
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/torosent/vegasload/internal/casino"
	"github.com/torosent/vegasload/internal/logging"
)

func main() {
	port := pflag.Int("port", 3000, "Listening port")
	logLevel := pflag.String("log-level", "info", "Log level (debug logs every spin)")
	pflag.Parse()

	logger, err := logging.New(*logLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := casino.NewHandler(logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("casino listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("casino server failed", zap.Error(err))
	}
	c := h.Counts()
	logger.Info("casino stopped",
		zap.Int64("pages", c.Pages),
		zap.Int64("resources", c.Resources),
		zap.Int64("spins", c.Spins),
		zap.Int64("rejected", c.Rejected),
		zap.Int64("tagged", c.Tagged),
	)
}

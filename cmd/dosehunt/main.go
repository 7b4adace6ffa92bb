package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dosehunt/dosehunt/internal/booking"
	"github.com/dosehunt/dosehunt/internal/config"
	"github.com/dosehunt/dosehunt/internal/doctolib"
	"github.com/dosehunt/dosehunt/internal/observability/metrics"
	"github.com/dosehunt/dosehunt/internal/status"
	"github.com/dosehunt/dosehunt/internal/sweep"
	"github.com/dosehunt/dosehunt/pkg/logging"
)

func main() {
	// Load .env if present (development convenience)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dosehunt",
		"env", cfg.Env,
		"city", cfg.City,
	)

	if cfg.City == "" || cfg.Username == "" {
		logger.Error("CITY and DOCTOLIB_USERNAME are required")
		os.Exit(1)
	}

	password := cfg.Password
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			logger.Error("failed to read password", "error", err)
			os.Exit(1)
		}
		password = strings.TrimSpace(line)
	}

	pattern, err := regexp.Compile(cfg.MotivePattern)
	if err != nil {
		logger.Error("invalid motive pattern", "pattern", cfg.MotivePattern, "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	client := doctolib.NewClient(cfg.BaseURL,
		doctolib.WithLogger(logger),
		doctolib.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Login(ctx, cfg.Username, password); err != nil {
		logger.Error("login failed", "error", err)
		os.Exit(1)
	}

	engine := booking.NewEngine(client, booking.NewStdinPrompt(), pattern,
		booking.WithSlotPolicy(booking.ParsePolicy(cfg.SlotPolicy)),
		booking.WithScanSteps(cfg.ScanMaxSteps),
		booking.WithLogger(logger),
		booking.WithMetrics(bookingMetrics),
	)

	driver := sweep.New(client, engine, cfg.City,
		sweep.WithIntervals(cfg.CenterInterval, cfg.SweepInterval),
		sweep.WithLogger(logger),
		sweep.WithMetrics(bookingMetrics),
	)

	// Side status server for liveness and Prometheus scraping.
	var srv *http.Server
	if cfg.StatusPort != "" {
		srv = &http.Server{
			Addr:         ":" + cfg.StatusPort,
			Handler:      status.New(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("status server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status server error", "error", err)
			}
		}()
	}

	center, runErr := driver.Run(ctx)
	switch {
	case runErr == nil:
		logger.Info("booking confirmed", "center", center.Name, "url", center.URL)
	case errors.Is(runErr, context.Canceled):
		logger.Info("aborted by operator")
	default:
		logger.Error("sweep failed", "error", runErr)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server forced to shutdown", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

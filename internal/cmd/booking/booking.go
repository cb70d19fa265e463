// Package booking parses booking command flags and starts the HTTP service.
package booking

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	entrypoint "github.com/luminastudio/booking/internal/platform/cmd"
	"github.com/luminastudio/booking/internal/platform/ratelimiter"
	httpapi "github.com/luminastudio/booking/internal/services/booking/api/http"
	"github.com/luminastudio/booking/internal/services/booking/app"
	"github.com/luminastudio/booking/internal/services/booking/authz"
	"github.com/luminastudio/booking/internal/services/booking/domain/refund"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
	"github.com/luminastudio/booking/internal/services/booking/observability/metrics"
	"github.com/luminastudio/booking/internal/services/booking/storage/sqlite"
)

// Config holds booking command configuration.
type Config struct {
	Port               int    `env:"LUMINA_BOOKING_PORT" envDefault:"8080"`
	DBPath             string `env:"LUMINA_BOOKING_DB_PATH" envDefault:"booking.db"`
	RefundSchedulePath string `env:"LUMINA_REFUND_SCHEDULE_PATH"`

	PaymentDeadlineDays int           `env:"LUMINA_PAYMENT_DEADLINE_DAYS" envDefault:"7"`
	ChangesDeadlineDays int           `env:"LUMINA_CHANGES_DEADLINE_DAYS" envDefault:"3"`
	DefaultEditingDays  int           `env:"LUMINA_DEFAULT_EDITING_DAYS" envDefault:"14"`
	RequireFullPayment  bool          `env:"LUMINA_REQUIRE_FULL_PAYMENT" envDefault:"true"`
	TransitionRateRPS   float64       `env:"LUMINA_TRANSITION_RATE_RPS" envDefault:"5"`
	TransitionRateBurst int           `env:"LUMINA_TRANSITION_RATE_BURST" envDefault:"10"`
	TransitionRateIdle  time.Duration `env:"LUMINA_TRANSITION_RATE_IDLE_TTL" envDefault:"10m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The booking HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the booking sqlite database")
	fs.StringVar(&cfg.RefundSchedulePath, "refund-schedule", cfg.RefundSchedulePath, "Path to the refund schedule YAML (empty uses the studio default)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the booking service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBooking, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	verifier, err := authz.LoadVerifierConfigFromEnv(time.Now)
	if err != nil {
		return fmt.Errorf("load actor token config: %w", err)
	}

	schedule, err := refund.LoadSchedule(cfg.RefundSchedulePath)
	if err != nil {
		return fmt.Errorf("load refund schedule: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	machine := session.NewMachine(session.Config{
		PaymentDeadlineDays:             cfg.PaymentDeadlineDays,
		ChangesDeadlineDays:             cfg.ChangesDeadlineDays,
		DefaultEditingDays:              cfg.DefaultEditingDays,
		RequireFullPaymentForCompletion: cfg.RequireFullPayment,
	}, schedule)

	svc, err := app.NewService(store, machine,
		app.WithDispatcher(app.LogDispatcher{}),
		app.WithLimiter(ratelimiter.New(cfg.TransitionRateRPS, cfg.TransitionRateBurst, cfg.TransitionRateIdle)),
		app.WithMetrics(metrics.New(registry)),
	)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	e := httpapi.NewServer(svc, verifier, registry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

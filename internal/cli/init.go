// Package cli holds the start-up steps shared by cmd/hisob, cmd/hisob-worker
// and cmd/rates-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hisob/internal/amqp"
	"hisob/internal/backend"
	"hisob/internal/config"
	"hisob/internal/currency"
	"hisob/internal/log"
	"hisob/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the logger for component from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger(component string, cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = cfg.Level()
	lc.Component = component
	lc.Format, _ = log.ParseFormat(cfg.LogFormat)
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads the environment, sets up logging and exits
// the process when the configuration is invalid.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(component, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			"error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend opens the configured repository or exits the process.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.WithComponent(log.ComponentBackend).Error("Failed to initialize storage backend",
			log.FieldError, err,
			"backend", bc.Type)
		os.Exit(1)
	}
	logger.Info("Storage backend ready", "backend", bc.Type)
	return res
}

// InitConverter builds the rate converter over the public providers.
func InitConverter(logger *log.Logger, cfg *config.Config) *currency.Converter {
	source := currency.NewHTTPSource(cfg.RatesAPIURL, cfg.RatesFallbackAPIURL, cfg.RatesTimeout)
	cc := currency.DefaultConverterConfig()
	cc.Timeout = cfg.RatesTimeout
	cc.CacheTTL = cfg.RatesCacheTTL
	cc.HistoricalTTL = cfg.RatesHistoricalTTL
	return currency.NewConverter(source, cc, logger.WithComponent(log.ComponentRates).Logger)
}

// InitAMQP connects to the broker when AMQP_URL is set. It returns nil when
// messaging is disabled or the broker cannot be reached, and the caller
// runs without events.
func InitAMQP(logger *log.Logger, cfg *config.Config, bindings ...string) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, domain events will not be published")
		return nil
	}
	c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, bindings...)
	if err != nil {
		logger.WithComponent(log.ComponentAMQP).Warn("Failed to initialize AMQP client, continuing without events",
			log.FieldError, err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
	return c
}

// Publisher adapts a possibly nil client to services.Publisher so that a
// disabled broker reaches the services as an untyped nil.
func Publisher(c *amqp.Client) services.Publisher {
	if c == nil {
		return nil
	}
	return c
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunEvery calls fn immediately and then every interval until ctx is done.
// Errors are logged and the loop carries on.
func RunEvery(ctx context.Context, logger *log.Logger, name string, interval time.Duration, fn func(context.Context) error) {
	run := func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "Periodic task failed", "task", name, log.FieldError, err)
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// Cleanup runs fns with a bounded deadline, logging failures.
func Cleanup(logger *log.Logger, timeout time.Duration, fns ...func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(ctx); err != nil {
			logger.Error("Shutdown step failed", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
	}
}

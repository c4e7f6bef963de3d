package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaunagostinho/dht22/internal/dht"
	"github.com/shaunagostinho/dht22/internal/gpio"
	"github.com/shaunagostinho/dht22/internal/logging"
	"github.com/shaunagostinho/dht22/internal/report"
	"github.com/shaunagostinho/dht22/internal/server"
	"github.com/shaunagostinho/dht22/internal/sink"
	"github.com/shaunagostinho/dht22/web"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/dht22/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated sensor")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	// Bootstrap logger until the config has been read.
	boot := logging.New(os.Stderr, logging.Options{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL"), slog.LevelInfo),
		AppEnv:  os.Getenv("APP_ENV"),
		Version: version,
	}, "dht22d")
	cfg := server.LoadConfig(*configPath, boot)

	if *demo {
		cfg.Sensor.Driver = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	logger := logging.New(os.Stderr, logging.Options{
		Level:   logging.ParseLevel(cfg.Logging.Level, slog.LevelInfo),
		AppEnv:  cfg.Logging.AppEnv,
		Version: version,
	}, "dht22d")
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(report.ExitUsage)
	}

	drv := newDriver(cfg.Sensor.Driver)
	sensor, err := dht.Open(drv, cfg.Sensor.Pin, cfg.DHT(), logger)
	if err != nil {
		o := dht.OpenFailure(err)
		logger.Error("sensor unavailable", "pin", cfg.Sensor.Pin, "driver", drv.Name(), "status", o.Status, "error", err)
		os.Exit(report.ExitCode(o))
	}
	defer drv.Close()
	logger.Info("sensor ready", "sensor", sensor.String(), "driver", drv.Name(), "interval", cfg.Interval())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sinks connect in the background; the acquisition loop starts regardless.
	var sinks []sink.Sink
	if cfg.MQTT.Enabled {
		sinks = append(sinks, sink.NewMQTT(cfg.MQTT, logger.With("component", "mqtt")))
	}
	if cfg.Serial.Enabled {
		sinks = append(sinks, sink.NewSerial(cfg.Serial, logger.With("component", "serial")))
	}
	if cfg.Modbus.Enabled {
		sinks = append(sinks, sink.NewModbus(cfg.Modbus, logger.With("component", "modbus")))
	}
	for _, s := range sinks {
		go connectWithRetry(ctx, logger, s, 10)
		defer s.Close()
	}

	srv := server.New(cfg, sensor, sinks, web.FS, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", "error", err)
	}
	logger.Info("shutting down")
}

func newDriver(name string) gpio.Driver {
	switch name {
	case "rpio":
		return gpio.NewRPIO()
	case "demo":
		return gpio.NewDemo(time.Now().UnixNano())
	default:
		return gpio.NewPeriph()
	}
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, logger *slog.Logger, s sink.Sink, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.Connect(ctx)
		if err == nil {
			logger.Info("sink connected", "sink", s.Name(), "attempt", attempt+1)
			return
		}

		attempt++
		if attempt <= maxAttempts {
			logger.Warn("sink connect failed", "sink", s.Name(), "attempt", attempt, "max", maxAttempts, "error", err, "retry_in", delay)
		} else {
			logger.Warn("sink connect failed", "sink", s.Name(), "attempt", attempt, "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Command dht22 reads a DHT22 sensor once and prints the result as JSON.
//
//	dht22 <pin>
//
// pin is a physical header position (7) or a BCM name (GPIO4). The backend
// is chosen with DHT22_DRIVER (periph, rpio or demo); logs go to stderr at
// LOG_LEVEL (default warn).
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shaunagostinho/dht22/internal/dht"
	"github.com/shaunagostinho/dht22/internal/gpio"
	"github.com/shaunagostinho/dht22/internal/logging"
	"github.com/shaunagostinho/dht22/internal/report"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: dht22 <pin>")
		return report.ExitUsage
	}

	appEnv := getenv("APP_ENV")
	if appEnv == "" {
		appEnv = version
	}
	logger := logging.New(stderr, logging.Options{
		Level:   logging.ParseLevel(getenv("LOG_LEVEL"), slog.LevelWarn),
		AppEnv:  appEnv,
		Version: version,
	}, "dht22")

	drv, err := newDriver(getenv("DHT22_DRIVER"))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return report.ExitUsage
	}
	defer drv.Close()

	o := dht.Acquire(drv, args[0], dht.DefaultConfig(), logger)
	if !o.OK() {
		logger.Warn("acquisition failed", "pin", args[0], "status", o.Status, "error", o.Err)
	}
	if err := report.Write(stdout, report.FromOutcome(o)); err != nil {
		logger.Error("write result", "error", err)
	}
	return report.ExitCode(o)
}

func newDriver(name string) (gpio.Driver, error) {
	switch name {
	case "", "periph":
		return gpio.NewPeriph(), nil
	case "rpio":
		return gpio.NewRPIO(), nil
	case "demo":
		return gpio.NewDemo(time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("unknown DHT22_DRIVER %q (want periph, rpio or demo)", name)
	}
}

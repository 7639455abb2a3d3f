// Command argusd samples the robot's gas and thermal sensors and broadcasts
// the readings to WebSocket observers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/argus-bot/telemetry/internal/api"
	"github.com/argus-bot/telemetry/internal/bridge"
	"github.com/argus-bot/telemetry/internal/config"
	"github.com/argus-bot/telemetry/internal/gas"
	"github.com/argus-bot/telemetry/internal/logging"
	"github.com/argus-bot/telemetry/internal/loop"
	"github.com/argus-bot/telemetry/internal/telemetry"
	"github.com/argus-bot/telemetry/internal/thermal"
)

const (
	Version       = "1.0.0"
	snapshotScale = 10
)

func main() {
	configPath := flag.String("c", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "argusd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Step 1: configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Step 2: logging
	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	logger.Info("starting argusd", "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 3: hub and optional MQTT mirror
	hub := telemetry.NewHub(telemetry.WithHubLogger(logger.With("component", "hub")))

	if cfg.MQTT.Enabled {
		mirror := bridge.NewMQTTObserver(cfg.MQTT, logger.With("component", "mqtt"))
		if err := mirror.Connect(ctx); err != nil {
			// paho keeps retrying in the background
			logger.Warn("mqtt broker not reachable yet", "error", err)
		}
		hub.Register(mirror)
	}

	// Step 4: HTTP server; health reports starting until the loop runs
	var loopHandle loop.Handle
	loopOptions := []func(*loop.Loop){loop.WithLogger(logger.With("component", "loop"))}
	serverOptions := []func(*api.Server){api.WithLogger(logger.With("component", "api"))}
	if cfg.Thermal.Snapshot {
		renderer, err := thermal.NewRenderer(snapshotScale)
		if err != nil {
			return fmt.Errorf("thermal renderer: %w", err)
		}
		snapshot := &thermal.Snapshot{}
		loopOptions = append(loopOptions, loop.WithSnapshot(snapshot))
		serverOptions = append(serverOptions, api.WithThermalSnapshot(snapshot, renderer))
	}

	server := api.NewServer(cfg, hub, &loopHandle, serverOptions...)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
			stop()
		}
	}()

	var wg sync.WaitGroup
	err = startSampling(ctx, cfg, logger, hub, &loopHandle, loopOptions, &wg)
	switch {
	case err == nil:
		<-ctx.Done()
		logger.Info("shutdown requested")
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested during start-up")
		err = nil
	}

	select {
	case serveErr := <-serverErr:
		logger.Error("http server stopped", "error", serveErr)
		err = serveErr
	default:
	}

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := server.Stop(shutdownCtx); stopErr != nil {
		logger.Error("error stopping http server", "error", stopErr)
	}
	hub.Stop()

	logger.Info("argusd stopped")
	return err
}

// startSampling opens both sensors, blocking until the thermal imager
// answers, then starts the sample loop and publishes it to handle.
func startSampling(ctx context.Context, cfg *config.Config, logger *slog.Logger, hub *telemetry.Hub,
	handle *loop.Handle, loopOptions []func(*loop.Loop), wg *sync.WaitGroup) error {
	// gas channels
	adc, err := gas.OpenADC(cfg.Gas)
	if err != nil {
		return fmt.Errorf("gas adc: %w", err)
	}
	sampler := gas.NewSampler(adc, cfg.Gas, gas.WithLogger(logger.With("component", "gas")))
	logger.Info("gas sampler ready",
		"device", cfg.Gas.Device,
		"mq135_channel", cfg.Gas.MQ135Channel,
		"mq9_channel", cfg.Gas.MQ9Channel)

	// thermal imager
	imager, err := thermal.OpenImager(cfg.Thermal)
	if err != nil {
		return fmt.Errorf("thermal imager: %w", err)
	}
	source, err := thermal.Open(ctx, imager, cfg.Thermal, thermal.WithLogger(logger.With("component", "thermal")))
	if err != nil {
		return err
	}
	logger.Info("thermal imager ready", "device", cfg.Thermal.Device, "refresh_hz", cfg.Thermal.RefreshRate)

	sampleLoop := loop.New(sampler, source, hub, cfg.Broadcast.Interval, loopOptions...)
	handle.Set(sampleLoop)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sampleLoop.Run(ctx)
	}()
	return nil
}

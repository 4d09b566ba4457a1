package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/meterwatch/internal/config"
	"github.com/edgeo-scada/meterwatch/internal/poller"
	"github.com/edgeo-scada/meterwatch/internal/store"
	"github.com/edgeo-scada/meterwatch/internal/transport"
	"github.com/edgeo-scada/meterwatch/internal/web"
	"github.com/edgeo-scada/meterwatch/meter"
	"github.com/edgeo-scada/meterwatch/rtu"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poller and web server",
	Long: `Poll the meter at a fixed interval and serve the latest reading
on the configured HTTP listener. Runs until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	serial, err := transport.OpenSerial(transport.SerialConfig{
		Device:   cfg.Serial.Device,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: cfg.Serial.DataBits,
		StopBits: cfg.Serial.StopBits,
		Parity:   cfg.Serial.Parity,
	})
	if err != nil {
		return err
	}

	client, err := rtu.NewClient(serial,
		rtu.WithSlaveID(rtu.SlaveID(cfg.Meter.SlaveID)),
		rtu.WithTimeout(cfg.Meter.Timeout),
		rtu.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	st := store.New()

	p, err := poller.New(poller.Config{
		Block: meter.Block{
			Base:  cfg.Meter.BaseAddress,
			Count: cfg.Meter.RegisterCount,
		},
		Interval:          cfg.Meter.PollInterval,
		FrequencySource:   poller.FrequencySource(cfg.Meter.Frequency.Source),
		FrequencyAddress:  cfg.Meter.Frequency.Address,
		FrequencyFallback: cfg.Meter.Frequency.Fallback,
	}, client, st, logger)
	if err != nil {
		return err
	}

	srv := web.New(web.Config{
		Listen:    cfg.HTTP.Listen,
		AccessKey: cfg.HTTP.AccessKey,
	}, st, client.Metrics(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		p.Run(ctx)
		errCh <- nil
	}()

	logger.Info("meterwatch started",
		slog.String("device", cfg.Serial.Device),
		slog.String("listen", cfg.HTTP.Listen))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			cancel()
			return fmt.Errorf("serve: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("web shutdown", slog.String("error", err.Error()))
	}

	return nil
}

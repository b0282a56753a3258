package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gloworm-vision/gloworm-led/internal/config"
	"github.com/gloworm-vision/gloworm-led/server"
	"github.com/gloworm-vision/gloworm-led/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ledd",
		Short: "GPIO status LED daemon",
	}

	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	var configPath string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drive the configured LEDs and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c.ApplyEnv(os.LookupEnv)
			c.ApplyFlags(cmd)

			return serve(cmd.Context(), c)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ledd.toml", "path to the TOML config file")
	defaults.RegisterFlags(cmd.Flags())

	return cmd
}

func serve(ctx context.Context, c config.Config) error {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	st, err := store.OpenBBolt(c.DBPath, 0666, nil)
	if err != nil {
		return fmt.Errorf("unable to open store: %w", err)
	}
	defer st.Close()

	if _, err := st.HardwareConfig(); errors.Is(err, store.ErrNotFound) {
		if err := c.Hardware.Validate(); err != nil {
			return fmt.Errorf("invalid hardware config: %w", err)
		}
		if err := st.PutHardwareConfig(c.Hardware); err != nil {
			return fmt.Errorf("unable to seed hardware config: %w", err)
		}
		logger.WithField("leds", len(c.Hardware.LEDs)).Info("seeded hardware config")
	} else if err != nil {
		return fmt.Errorf("unable to read hardware config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.Server{Addr: c.Addr, Store: st, Logger: logger}
	if err := s.Run(ctx); err != nil {
		logger.WithError(err).Error("server stopped")
		return err
	}

	logger.Info("shut down")
	return nil
}

/*
 * Copyright 2014 Canonical Ltd.
 *
 * This file is part of ofono2mm-go.
 *
 * ofono2mm-go is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; version 3.
 *
 * ofono2mm-go is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// ofono2mm bridges org.ofono modems onto the org.freedesktop.ModemManager1
// upper protocol on the system bus.
//
// Usage:
//
//	ofono2mm run                  # start the daemon
//	ofono2mm version             # print version
//	ofono2mm -V, --version        # print version and exit
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/ubports/ofono2mm-go/internal/applog"
	"github.com/ubports/ofono2mm-go/internal/config"
	"github.com/ubports/ofono2mm-go/internal/metrics"
	"github.com/ubports/ofono2mm-go/manager"
	"github.com/ubports/ofono2mm-go/ofono"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	verbose     bool
	showVersion bool
	configPath  string
	metricsAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ofono2mm",
	Short:         "Bridge org.ofono modems onto org.freedesktop.ModemManager1",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			return applog.SetLogLevel("debug")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) logging")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "print the version and exit")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "preference file path")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "127.0.0.1:9539", "debug metrics/health HTTP listen address")

	rootCmd.AddCommand(newRunCmd(), newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	log := applog.WithField("component", "main")

	prefs, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading preferences from %s: %w", configPath, err)
	}
	log.WithField("mobile_data_enabled", prefs.MobileDataEnabled).Debug("loaded preferences")

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connecting to the system bus: %w", err)
	}
	defer conn.Close()

	reg := metrics.New()
	client := ofono.NewClient(conn, applog.WithField("component", "ofono"))
	mgr := manager.New(conn, client, applog.Entry(), reg)

	srv := &http.Server{Addr: metricsAddr, Handler: reg.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("metrics HTTP server stopped")
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgr.Start(sigCtx); err != nil {
		return fmt.Errorf("starting manager: %w", err)
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Debug("sd_notify READY failed")
	} else if ok {
		log.Debug("sd_notify READY=1 delivered")
	}

	go pollModemCount(sigCtx, mgr, reg)

	<-sigCtx.Done()
	log.Info("shutting down")
	_ = srv.Close()
	return nil
}

// pollModemCount keeps the modems_tracked gauge current for the debug
// metrics surface until ctx is cancelled.
func pollModemCount(ctx context.Context, mgr *manager.Manager, reg *metrics.Registry) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.ModemsTracked.Set(float64(mgr.Count()))
		}
	}
}

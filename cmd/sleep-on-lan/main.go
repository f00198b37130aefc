/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/gpillon/sleep-on-lan/internal/config"
	"github.com/gpillon/sleep-on-lan/internal/health"
	"github.com/gpillon/sleep-on-lan/internal/suspend"
	"github.com/gpillon/sleep-on-lan/internal/wol"
)

var (
	// version is overridden at build time with -ldflags "-X main.version=..."
	version  = "v0.1.0"
	setupLog = ctrl.Log.WithName("setup")
)

// errReported marks errors already logged through setupLog
var errReported = errors.New("sleep-on-lan failed")

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// runDaemon binds the listener and serves until ctx is cancelled or the socket fails
func runDaemon(ctx context.Context, cfg *config.Config) error {
	log := ctrl.Log.WithName("sleep-on-lan")

	setupLog.Info("Starting Sleep-on-LAN daemon",
		"port", cfg.Port,
		"suspendCommand", strings.Join(cfg.SuspendCommand, " "),
		"dryRun", cfg.DryRun,
		"cooldown", cfg.Cooldown.String(),
		"version", version)

	ifaces, err := wol.LocalInterfaces(setupLog)
	if err != nil {
		setupLog.Error(err, "Failed to list local interfaces (continuing)")
	}
	if len(ifaces) == 0 {
		setupLog.Info("Warning: no network interfaces with MAC addresses found")
	}
	for _, iface := range ifaces {
		setupLog.Info("Monitoring for magic packets targeting", "interface", iface.Name, "mac", iface.HardwareAddr.String())
	}

	suspender := suspend.New(suspend.Options{
		Command: cfg.SuspendCommand,
		Timeout: cfg.SuspendTimeout,
		DryRun:  cfg.DryRun,
	}, log.WithName("suspend"))

	handler := wol.NewHandler(func() {
		if err := suspender.Suspend(ctx); err != nil {
			wol.SuspendFailuresTotal.Inc()
			log.Error(err, "Failed to suspend system")
		}
	}, log.WithName("handler"), wol.HandlerOptions{Cooldown: cfg.Cooldown})
	handler.SetLocalInterfaces(ifaces)

	listener := wol.NewListener(cfg.Port, handler, log.WithName("listener"))
	if err := listener.Listen(ctx); err != nil {
		return err
	}

	// A failed health server stops the daemon, so /readyz is never silently missing
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	healthErr := make(chan error, 1)
	if health.Enabled(cfg.HealthBindAddress) {
		server := health.NewServer(cfg.HealthBindAddress, listener.Ready, metrics.Registry, log.WithName("health"))
		go func() {
			if err := server.Start(ctx); err != nil {
				healthErr <- fmt.Errorf("health check server failed: %w", err)
				cancel()
			}
		}()
	}

	for _, name := range cfg.RawInterfaces {
		raw := wol.NewRawListenerWithOptions(name, handler, log.WithName("raw").WithValues("iface", name), wol.RawListenerOptions{
			Promiscuous:    cfg.RawPromiscuous,
			AttachBPF:      true,
			RecvTimeoutSec: 1,
		})
		if err := raw.Start(ctx); err != nil {
			setupLog.Error(err, "Failed to start raw Ethernet listener (continuing with UDP only)", "iface", name)
			continue
		}
		defer raw.Stop()
	}

	if err := listener.Serve(ctx); err != nil {
		return err
	}

	select {
	case err := <-healthErr:
		return err
	default:
	}

	setupLog.Info("Sleep-on-LAN daemon stopped")
	return nil
}

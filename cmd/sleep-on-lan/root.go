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
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/gpillon/sleep-on-lan/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFile string
	opts := zap.Options{
		Development: false,
	}

	cmd := &cobra.Command{
		Use:   "sleep-on-lan",
		Short: "Suspend this host when a Wake-on-LAN magic packet arrives",
		Long: `sleep-on-lan listens for UDP Wake-on-LAN magic packets and suspends the
machine it runs on when a valid one arrives, so ordinary Wake-on-LAN tooling
can put an always-on host to sleep.

Examples:
  sleep-on-lan                          # listen on UDP port 10, run "systemctl suspend"
  sleep-on-lan -p 9 --dry-run           # listen on port 9, only log suspend requests
  sleep-on-lan -c /etc/sleep-on-lan.yaml
  sleep-on-lan send --mac 52:54:00:12:34:56 --addr 192.168.1.255`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				setupLog.Error(err, "Failed to load configuration", "config", configFile)
				return errReported
			}

			// Context with signal handling for graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := runDaemon(ctx, cfg); err != nil {
				setupLog.Error(err, "Sleep-on-LAN daemon failed", "port", cfg.Port)
				return errReported
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (yaml, json or toml)")

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.BindFlags(goFlags)
	cmd.PersistentFlags().AddGoFlagSet(goFlags)

	config.BindFlags(cmd.Flags())

	cmd.AddCommand(newSendCommand())
	return cmd
}

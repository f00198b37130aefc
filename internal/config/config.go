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

// Package config loads the daemon configuration using viper.
// Precedence, lowest first: defaults, config file, SLEEP_ON_LAN_* environment, flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gpillon/sleep-on-lan/internal/suspend"
	"github.com/gpillon/sleep-on-lan/internal/wol"
)

// EnvPrefix prefixes environment overrides, e.g. SLEEP_ON_LAN_PORT
const EnvPrefix = "SLEEP_ON_LAN"

const (
	KeyPort              = "port"
	KeySuspendCommand    = "suspend-command"
	KeySuspendTimeout    = "suspend-timeout"
	KeyDryRun            = "dry-run"
	KeyCooldown          = "cooldown"
	KeyHealthBindAddress = "health-bind-address"
	KeyRawInterfaces     = "raw-interfaces"
	KeyRawPromiscuous    = "raw-promiscuous"
)

// Config is the daemon configuration
type Config struct {
	Port              int           `mapstructure:"port"`
	SuspendCommand    []string      `mapstructure:"suspend-command"`
	SuspendTimeout    time.Duration `mapstructure:"suspend-timeout"`
	DryRun            bool          `mapstructure:"dry-run"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	HealthBindAddress string        `mapstructure:"health-bind-address"`
	RawInterfaces     []string      `mapstructure:"raw-interfaces"`
	RawPromiscuous    bool          `mapstructure:"raw-promiscuous"`
}

// BindFlags registers the configuration flags on fs
func BindFlags(fs *pflag.FlagSet) {
	fs.IntP(KeyPort, "p", wol.DefaultSleepPort, "UDP port to listen on for magic packets")
	fs.StringSlice(KeySuspendCommand, suspend.DefaultCommand, "Command run to suspend the system")
	fs.Duration(KeySuspendTimeout, suspend.DefaultTimeout, "Timeout for the suspend command")
	fs.Bool(KeyDryRun, false, "Log suspend requests without suspending")
	fs.Duration(KeyCooldown, 0, "Ignore magic packets for this long after a suspend (0 disables)")
	fs.String(KeyHealthBindAddress, "0", "The address the health and metrics endpoint binds to, or 0 to disable it")
	fs.StringSlice(KeyRawInterfaces, nil, "Interfaces to also watch for Layer-2 (EtherType 0x0842) magic packets")
	fs.Bool(KeyRawPromiscuous, false, "Put raw-interfaces into promiscuous mode")
}

// Load reads the configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{KeyPort, KeySuspendCommand, KeySuspendTimeout, KeyDryRun, KeyCooldown, KeyHealthBindAddress, KeyRawInterfaces, KeyRawPromiscuous} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", key, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SuspendCommand = normalizeCommand(cfg.SuspendCommand)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, wol.DefaultSleepPort)
	v.SetDefault(KeySuspendCommand, suspend.DefaultCommand)
	v.SetDefault(KeySuspendTimeout, suspend.DefaultTimeout)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyCooldown, time.Duration(0))
	v.SetDefault(KeyHealthBindAddress, "0")
	v.SetDefault(KeyRawInterfaces, []string{})
	v.SetDefault(KeyRawPromiscuous, false)
}

// normalizeCommand splits a single-string command such as "systemctl suspend" into argv
func normalizeCommand(cmd []string) []string {
	if len(cmd) == 1 {
		return strings.Fields(cmd[0])
	}
	return cmd
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range (must be 1-65535)", c.Port)
	}
	if len(c.SuspendCommand) == 0 || c.SuspendCommand[0] == "" {
		return suspend.ErrEmptyCommand
	}
	if c.SuspendTimeout < 0 {
		return fmt.Errorf("suspend-timeout must not be negative, got %s", c.SuspendTimeout)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown)
	}
	for _, name := range c.RawInterfaces {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("raw-interfaces contains an empty interface name")
		}
	}
	return nil
}

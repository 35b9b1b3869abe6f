/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */
// Package config defines the router's configuration surface: a plain
// struct named after the GN MIB constants it controls, loaded via
// github.com/spf13/viper and hot-reloaded via github.com/fsnotify/fsnotify,
// pushed into the running engine the same way the teacher's bgp.Pool
// exposes a Configure(map[string]Parameters) channel call rather than
// requiring a restart.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// IfType identifies the link-layer medium a router interface runs over,
// mirroring original_source's GnIfType.
type IfType int

const (
	IfTypeUnspecified IfType = iota
	IfTypeEthernet
	IfTypeIEEE80211p
	IfTypeUDP
	IfTypeNxpLLC
	IfTypeNxpUSB
)

func (t IfType) String() string {
	switch t {
	case IfTypeEthernet:
		return "ethernet"
	case IfTypeIEEE80211p:
		return "ieee80211p"
	case IfTypeUDP:
		return "udp"
	case IfTypeNxpLLC:
		return "nxp-llc"
	case IfTypeNxpUSB:
		return "nxp-usb"
	default:
		return "unspecified"
	}
}

// SnDecapResultHandling selects how the core reacts to a SecurityService
// decap report other than Correct (original_source's
// GnSnDecapResultHandling).
type SnDecapResultHandling int

const (
	// Strict: drop any packet whose decap report isn't Correct.
	Strict SnDecapResultHandling = iota
	// NonStrict: deliver the packet anyway, flagged as insecure.
	NonStrict
)

func (h SnDecapResultHandling) String() string {
	if h == NonStrict {
		return "non-strict"
	}
	return "strict"
}

// NonAreaForwardingAlgorithm selects the GUC forwarding strategy.
type NonAreaForwardingAlgorithm int

const (
	NonAreaGreedy NonAreaForwardingAlgorithm = iota
	NonAreaCBF
)

func (a NonAreaForwardingAlgorithm) String() string {
	if a == NonAreaCBF {
		return "cbf"
	}
	return "greedy"
}

// AreaForwardingAlgorithm selects the GBC/GAC forwarding strategy.
type AreaForwardingAlgorithm int

const (
	AreaSimple AreaForwardingAlgorithm = iota
	AreaCBF
)

func (a AreaForwardingAlgorithm) String() string {
	if a == AreaCBF {
		return "cbf"
	}
	return "simple"
}

// AddrConfigMode selects how the station's own GN address link-layer
// portion is derived.
type AddrConfigMode int

const (
	AddrConfigManual AddrConfigMode = iota
	AddrConfigAuto
)

// Config is the router's full configuration surface, field-named after the
// MIB constants in original_source/veloce/src/config.rs rather than
// invented names.
type Config struct {
	StationType           uint8                      `mapstructure:"station_type"`
	AddressConfigMode      AddrConfigMode             `mapstructure:"address_config_mode"`
	IfType                 IfType                     `mapstructure:"if_type"`
	SnDecapResultHandling  SnDecapResultHandling      `mapstructure:"sn_decap_result_handling"`
	NonAreaForwarding      NonAreaForwardingAlgorithm `mapstructure:"non_area_forwarding_algorithm"`
	AreaForwarding         AreaForwardingAlgorithm    `mapstructure:"area_forwarding_algorithm"`
	DefaultHopLimit        uint8                      `mapstructure:"default_hop_limit"`
	DefaultMaxCommRangeM   float64                    `mapstructure:"max_communication_range_m"`
	// CBRTarget is the MIB-level "intended" CBR target (GN_CBR_TARGET,
	// informational only; no metric exports it). It is intentionally independent of
	// limeric.Parameters.CBRTarget — see DESIGN.md Open Question #5.
	CBRTarget float64 `mapstructure:"cbr_target"`

	BeaconInterval time.Duration `mapstructure:"beacon_interval"`
	BeaconJitter   time.Duration `mapstructure:"beacon_jitter"`

	DualAlphaEnabled bool `mapstructure:"dual_alpha_enabled"`

	DeviceMedium string `mapstructure:"device_medium"`
	DevicePath   string `mapstructure:"device_path"`

	MetricsListenAddr string `mapstructure:"metrics_listen_addr"`

	SecurityStorageDir string `mapstructure:"security_storage_dir"`
}

// Default returns the router's default configuration, matching the
// spec.md/SPEC_FULL.md constants where a constant is named.
func Default() Config {
	return Config{
		StationType:          5, // passenger car
		AddressConfigMode:    AddrConfigAuto,
		IfType:               IfTypeIEEE80211p,
		SnDecapResultHandling: Strict,
		NonAreaForwarding:    NonAreaGreedy,
		AreaForwarding:       AreaSimple,
		DefaultHopLimit:      10,
		DefaultMaxCommRangeM: 1000,
		CBRTarget:            0.62,
		BeaconInterval:       3 * time.Second,
		BeaconJitter:         750 * time.Millisecond,
		MetricsListenAddr:    ":9100",
	}
}

// Load reads configuration from path (any format viper supports: yaml,
// json, toml) layered over Default().
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Watch loads path, invokes onChange once with the initial configuration,
// then again on every subsequent file change, via fsnotify — matching the
// teacher's live Configure() push model rather than requiring a restart.
// It returns a function that stops watching.
func Watch(path string, onChange func(Config)) (stop func() error, err error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	onChange(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if next, err := Load(path); err == nil {
					onChange(next)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}

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

// Package config loads the node's runtime configuration: node identity,
// overlay strings, multicast group/port, and the SPT timers.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay identifies which overlay this node joins and computes the
// partitioning hash used to validate inbound SPT packets.
type Overlay struct {
	ID            string `yaml:"id"`
	SecurityLevel string `yaml:"security_level"`
	Protocol      string `yaml:"protocol"`
}

// Hash derives the 32-bit overlay-partitioning hash for this overlay.
func (o Overlay) Hash() uint32 {
	return OverlayHash(o.ID, o.SecurityLevel, o.Protocol)
}

// Network holds the multicast socket parameters.
type Network struct {
	Group           string `yaml:"group"`
	Port            int    `yaml:"port"`
	TTL             int    `yaml:"ttl"`
	LoopbackEnabled bool   `yaml:"loopback_enabled"`
}

// SPT holds the SPT state machine's timers.
type SPT struct {
	HeartbeatSeconds    int64 `yaml:"heartbeat_seconds"`
	AdjacencyTimeout    int64 `yaml:"adjacency_timeout_seconds"`
	NeighborhoodTimeout int64 `yaml:"neighborhood_timeout_seconds"`
	JumpThreshold       uint32 `yaml:"jump_threshold"`
}

// Telemetry toggles the Prometheus collector.
type Telemetry struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config is the full node configuration.
type Config struct {
	NodeLogical uint32    `yaml:"node_logical"`
	Overlay     Overlay   `yaml:"overlay"`
	Network     Network   `yaml:"network"`
	SPT         SPT       `yaml:"spt"`
	Telemetry   Telemetry `yaml:"telemetry"`
}

// Default returns the configuration defaults: multicast group
// 224.228.19.78:9472, TTL=1, loopback disabled, 5s heartbeat, 20s/5s
// timeouts.
func Default() Config {
	return Config{
		Overlay: Overlay{
			ID:            "id1",
			SecurityLevel: "plaintext",
			Protocol:      "SPT",
		},
		Network: Network{
			Group:           "224.228.19.78",
			Port:            9472,
			TTL:             1,
			LoopbackEnabled: false,
		},
		SPT: SPT{
			HeartbeatSeconds:    5,
			AdjacencyTimeout:    20,
			NeighborhoodTimeout: 5,
			JumpThreshold:       100,
		},
		Telemetry: Telemetry{
			Enabled: false,
			Listen:  ":9473",
		},
	}
}

// Load reads a YAML config file at path, overlaying it onto Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

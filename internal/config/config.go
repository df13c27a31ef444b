// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package config provides the fixtrack configuration, loaded via fig from
// a config file with environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

const configEnv = "FIXTRACK"

// Config represents the application's configuration structure.
type Config struct {
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Filter struct {
		// Fixes with a reported accuracy at or above this value are dropped.
		LargestInaccuracyM float64 `fig:"largest_inaccuracy_m" default:"150"`
		// Fixes moving faster than this (reported or implied) are dropped.
		VeryFastWalkMPS float64 `fig:"very_fast_walk_mps" default:"2.0"`
	} `fig:"filter"`

	Updates struct {
		MinIntervalMS      int64   `fig:"min_interval_ms" default:"5000"`
		MinDistanceM       float64 `fig:"min_distance_m" default:"0.01"`
		PreferHighAccuracy bool    `fig:"prefer_high_accuracy" default:"true"`
	} `fig:"updates"`

	Intervals struct {
		StalenessCheck time.Duration `fig:"staleness_check" default:"1m"`
	} `fig:"intervals"`

	Sources struct {
		DisableGPSD    bool   `fig:"disable_gpsd"`
		GPSDAddress    string `fig:"gpsd_address" default:"localhost:2947"`
		DisableGeoClue bool   `fig:"disable_geoclue" default:"true"`
		// NMEA serial input is enabled by setting a port, e.g. /dev/ttyUSB0
		NMEAPort string `fig:"nmea_port"`
		NMEABaud int    `fig:"nmea_baud" default:"9600"`
		// Coordinate file input is enabled by setting a path
		File string `fig:"file"`
	} `fig:"sources"`

	// Override pins the tracker to a fixed position at startup. All
	// source updates are ignored while the override is active.
	Override struct {
		Enabled   bool    `fig:"enabled"`
		Latitude  float64 `fig:"latitude"`
		Longitude float64 `fig:"longitude"`
	} `fig:"override"`

	Sinks struct {
		MQTT struct {
			// Broker enables the MQTT sink, e.g. tcp://localhost:1883
			Broker   string `fig:"broker"`
			ClientID string `fig:"client_id" default:"fixtrack"`
			Topic    string `fig:"topic" default:"fixtrack/fixes"`
			QOS      uint   `fig:"qos" default:"0"`
			Retain   bool   `fig:"retain"`
		} `fig:"mqtt"`
		Websocket struct {
			// Listen enables the websocket sink, e.g. localhost:8137
			Listen string `fig:"listen"`
		} `fig:"websocket"`
	} `fig:"sinks"`
}

// NewFromFile loads the configuration from the given file.
func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// New loads the configuration from the environment only.
func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Filter.LargestInaccuracyM <= 0 {
		return fmt.Errorf("invalid largest inaccuracy: %f", c.Filter.LargestInaccuracyM)
	}
	if c.Filter.VeryFastWalkMPS <= 0 {
		return fmt.Errorf("invalid walking speed limit: %f", c.Filter.VeryFastWalkMPS)
	}
	if c.Updates.MinIntervalMS < 0 {
		return fmt.Errorf("invalid minimum update interval: %d", c.Updates.MinIntervalMS)
	}
	if c.Updates.MinDistanceM < 0 {
		return fmt.Errorf("invalid minimum update distance: %f", c.Updates.MinDistanceM)
	}
	if c.Sources.NMEAPort != "" && c.Sources.NMEABaud <= 0 {
		return fmt.Errorf("invalid NMEA baud rate: %d", c.Sources.NMEABaud)
	}
	if c.Sinks.MQTT.QOS > 2 {
		return fmt.Errorf("invalid MQTT QoS: %d", c.Sinks.MQTT.QOS)
	}
	if c.Override.Enabled {
		if c.Override.Latitude < -90 || c.Override.Latitude > 90 ||
			c.Override.Longitude < -180 || c.Override.Longitude > 180 {
			return fmt.Errorf("invalid override coordinates: %f, %f", c.Override.Latitude,
				c.Override.Longitude)
		}
	}

	return nil
}

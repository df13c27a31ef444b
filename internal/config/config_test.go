// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	const (
		expectLargestInaccuracy = 150.0
		expectWalkSpeedLimit    = 2.0
		expectMinInterval       = int64(5000)
		expectMinDistance       = 0.01
		expectStalenessCheck    = time.Minute
		expectGPSDAddress       = "localhost:2947"
		expectMQTTTopic         = "fixtrack/fixes"
	)
	t.Run("new config with all defaults set", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Filter.LargestInaccuracyM != expectLargestInaccuracy {
			t.Errorf("expected largest inaccuracy to be: %f, got %f", expectLargestInaccuracy,
				conf.Filter.LargestInaccuracyM)
		}
		if conf.Filter.VeryFastWalkMPS != expectWalkSpeedLimit {
			t.Errorf("expected walking speed limit to be: %f, got %f", expectWalkSpeedLimit,
				conf.Filter.VeryFastWalkMPS)
		}
		if conf.Updates.MinIntervalMS != expectMinInterval {
			t.Errorf("expected minimum update interval to be: %d, got %d", expectMinInterval,
				conf.Updates.MinIntervalMS)
		}
		if conf.Updates.MinDistanceM != expectMinDistance {
			t.Errorf("expected minimum update distance to be: %f, got %f", expectMinDistance,
				conf.Updates.MinDistanceM)
		}
		if !conf.Updates.PreferHighAccuracy {
			t.Error("expected high accuracy preference to be enabled")
		}
		if conf.Intervals.StalenessCheck != expectStalenessCheck {
			t.Errorf("expected staleness check interval to be: %s, got %s", expectStalenessCheck,
				conf.Intervals.StalenessCheck)
		}
		if conf.Sources.GPSDAddress != expectGPSDAddress {
			t.Errorf("expected gpsd address to be: %s, got %s", expectGPSDAddress,
				conf.Sources.GPSDAddress)
		}
		if conf.Sinks.MQTT.Topic != expectMQTTTopic {
			t.Errorf("expected MQTT topic to be: %s, got %s", expectMQTTTopic, conf.Sinks.MQTT.Topic)
		}
	})
	t.Run("new config with invalid values from env", func(t *testing.T) {
		t.Setenv("FIXTRACK_LOGLEVEL", "invalid")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("config validate filter thresholds", func(t *testing.T) {
		t.Setenv("FIXTRACK_FILTER_LARGEST_INACCURACY_M", "0")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
		t.Setenv("FIXTRACK_FILTER_LARGEST_INACCURACY_M", "150")
		t.Setenv("FIXTRACK_FILTER_VERY_FAST_WALK_MPS", "-1")
		_, err = New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("config validate MQTT QoS", func(t *testing.T) {
		t.Setenv("FIXTRACK_SINKS_MQTT_QOS", "3")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("config validate override coordinates", func(t *testing.T) {
		t.Setenv("FIXTRACK_OVERRIDE_ENABLED", "true")
		t.Setenv("FIXTRACK_OVERRIDE_LATITUDE", "91")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("config validate NMEA baud rate", func(t *testing.T) {
		t.Setenv("FIXTRACK_SOURCES_NMEA_PORT", "/dev/ttyUSB0")
		t.Setenv("FIXTRACK_SOURCES_NMEA_BAUD", "-9600")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
}

func TestNewFromFile(t *testing.T) {
	t.Run("config from non-existent file fails", func(t *testing.T) {
		_, err := NewFromFile(t.TempDir(), "config.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
}

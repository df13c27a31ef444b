// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package service wires the fixtrack components together: it builds the
// tracker from the configuration, supervises the configured location
// sources and attaches the configured sinks.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/citywalk/fixtrack/internal/config"
	"github.com/citywalk/fixtrack/internal/logger"
	"github.com/citywalk/fixtrack/internal/sink/mqtt"
	"github.com/citywalk/fixtrack/internal/sink/wsock"
	"github.com/citywalk/fixtrack/internal/source"
	"github.com/citywalk/fixtrack/internal/source/file"
	"github.com/citywalk/fixtrack/internal/source/geoclue"
	"github.com/citywalk/fixtrack/internal/source/gpsd"
	"github.com/citywalk/fixtrack/internal/source/nmea"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const sinkBufferSize = 32

// Service owns the tracker, the source runner and the sinks for the
// lifetime of the process.
type Service struct {
	config    *config.Config
	logger    *logger.Logger
	tracker   *tracker.Tracker
	runner    *source.Runner
	scheduler gocron.Scheduler
}

// New initializes a Service from the given configuration.
func New(conf *config.Config, log *logger.Logger) (*Service, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	filter := tracker.Filter{
		LargestInaccuracyM: conf.Filter.LargestInaccuracyM,
		VeryFastWalkMPS:    conf.Filter.VeryFastWalkMPS,
	}

	service := &Service{
		config:    conf,
		logger:    log,
		tracker:   tracker.New(filter, log),
		scheduler: scheduler,
	}
	return service, nil
}

// Tracker exposes the tracker so the host can control the
// fixed-location override and read the current fix.
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

// Run starts the sources, sinks and scheduled jobs and blocks until the
// context is cancelled. Stopping the service stops fix delivery but
// leaves the tracker state intact.
func (s *Service) Run(ctx context.Context) error {
	sources, err := s.selectSources()
	if err != nil {
		return err
	}

	opts := source.Options{
		MinIntervalMS:      s.config.Updates.MinIntervalMS,
		MinDistanceM:       s.config.Updates.MinDistanceM,
		PreferHighAccuracy: s.config.Updates.PreferHighAccuracy,
	}
	s.runner = source.NewRunner(s.tracker, s.logger, opts, sources...)

	if s.config.Override.Enabled {
		s.tracker.SetOverride(tracker.Fix{
			Latitude:    s.config.Override.Latitude,
			Longitude:   s.config.Override.Longitude,
			TimestampMS: time.Now().UnixMilli(),
			Provider:    "override",
		})
		s.logger.Info("tracker pinned to fixed location",
			slog.Float64("latitude", s.config.Override.Latitude),
			slog.Float64("longitude", s.config.Override.Longitude))
	}

	if err = s.createScheduledJob(ctx, s.config.Intervals.StalenessCheck, s.reportStaleness,
		"staleness_check_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	unsubs, err := s.startSinks(ctx)
	if err != nil {
		return err
	}

	go s.runner.Run(ctx)

	<-ctx.Done()
	for _, unsub := range unsubs {
		unsub()
	}
	return s.scheduler.Shutdown()
}

// selectSources builds the list of enabled location sources from the
// configuration.
func (s *Service) selectSources() ([]source.Source, error) {
	var sources []source.Source

	if s.config.Sources.File != "" {
		sources = append(sources, file.New(s.config.Sources.File))
	}
	if !s.config.Sources.DisableGPSD {
		sources = append(sources, gpsd.New(s.config.Sources.GPSDAddress))
	}
	if s.config.Sources.NMEAPort != "" {
		sources = append(sources, nmea.New(s.config.Sources.NMEAPort, s.config.Sources.NMEABaud))
	}
	if !s.config.Sources.DisableGeoClue {
		sources = append(sources, geoclue.New())
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no location sources enabled")
	}
	return sources, nil
}

// startSinks subscribes the configured sinks to the tracker and returns
// their unsubscribe functions.
func (s *Service) startSinks(ctx context.Context) ([]func(), error) {
	var unsubs []func()

	if s.config.Sinks.MQTT.Broker != "" {
		mqttSink, err := mqtt.New(s.config.Sinks.MQTT.Broker, s.config.Sinks.MQTT.ClientID,
			s.config.Sinks.MQTT.Topic, byte(s.config.Sinks.MQTT.QOS), s.config.Sinks.MQTT.Retain,
			s.logger)
		if err != nil {
			return unsubs, fmt.Errorf("failed to create MQTT sink: %w", err)
		}
		sub, unsub := s.tracker.Subscribe(sinkBufferSize)
		unsubs = append(unsubs, unsub)
		go func() {
			defer mqttSink.Close()
			mqttSink.Run(ctx, sub)
		}()
	}

	if s.config.Sinks.Websocket.Listen != "" {
		wsockSink := wsock.New(s.config.Sinks.Websocket.Listen, s.logger)
		sub, unsub := s.tracker.Subscribe(sinkBufferSize)
		unsubs = append(unsubs, unsub)
		go func() {
			if err := wsockSink.Run(ctx, sub); err != nil {
				s.logger.Error("websocket sink failed", logger.Err(err))
			}
		}()
	}

	return unsubs, nil
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration,
	task func(context.Context), jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// reportStaleness logs the age of the current fix. Whether a stale fix
// is still usable is up to the consumers.
func (s *Service) reportStaleness(context.Context) {
	lastUpdate, ok := s.tracker.LastUpdateMS()
	if !ok {
		s.logger.Debug("no fix accepted yet")
		return
	}
	age := time.Since(time.UnixMilli(lastUpdate))
	s.logger.Debug("current fix age", slog.Duration("age", age),
		slog.Bool("overridden", s.tracker.Overridden()))
}

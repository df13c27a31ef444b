// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package geoclue provides a location source backed by the GeoClue2
// D-Bus service. It requires a running GeoClue agent on the session bus.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	geoclue2 "github.com/maltegrosse/go-geoclue2"

	"github.com/citywalk/fixtrack/internal/source"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const (
	DBusListNamesAddress = "org.freedesktop.DBus.ListNames"
	GeoclueAgentDBusName = "org.freedesktop.GeoClue2.DemoAgent"
	DesktopID            = "fixtrack"
)

var ErrAgentNotRunning = errors.New("geoclue agent is not running")

// AgentIsRunning checks the session bus for a registered GeoClue agent.
func AgentIsRunning(ctx context.Context) (isRunning bool, err error) {
	var list []string
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close session bus: %w", closeErr))
		}
	}()

	if err = conn.BusObject().Call(DBusListNamesAddress, 0).Store(&list); err != nil {
		return false, fmt.Errorf("failed to call DBus ListNames: %w", err)
	}

	for _, v := range list {
		if strings.EqualFold(v, GeoclueAgentDBusName) {
			return true, nil
		}
	}
	return false, nil
}

// Source streams location updates from GeoClue2.
type Source struct {
	name      string
	desktopID string
}

// New returns a GeoClue2 Source.
func New() *Source {
	return &Source{
		name:      "geoclue",
		desktopID: DesktopID,
	}
}

func (s *Source) Name() string {
	return s.name
}

// Stream registers a GeoClue2 client and emits a fix for every location
// update signal. The returned channel closes when the context is
// cancelled.
func (s *Source) Stream(ctx context.Context, opts source.Options) (<-chan tracker.Fix, error) {
	isRunning, err := AgentIsRunning(ctx)
	if err != nil {
		return nil, err
	}
	if !isRunning {
		return nil, ErrAgentNotRunning
	}

	client, err := s.registerClient(opts)
	if err != nil {
		return nil, err
	}
	if err = client.Start(); err != nil {
		return nil, fmt.Errorf("failed to start geoclue client: %w", err)
	}

	out := make(chan tracker.Fix)
	go func() {
		defer close(out)
		defer func() { _ = client.Stop() }()

		updates := client.SubscribeLocationUpdated()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				fix, err := s.fixFromUpdate(client, update)
				if err != nil {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- fix:
				}
			}
		}
	}()

	return out, nil
}

func (s *Source) registerClient(opts source.Options) (geoclue2.GeoclueClient, error) {
	manager, err := geoclue2.NewGeoclueManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize geoclue manager: %w", err)
	}
	client, err := manager.GetClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get geoclue client: %w", err)
	}
	if err = client.SetDesktopId(s.desktopID); err != nil {
		return nil, fmt.Errorf("failed to set desktop id: %w", err)
	}

	// interval and distance hints cannot be expressed through this
	// backend, only the accuracy preference
	level := geoclue2.GClueAccuracyLevelCity
	if opts.PreferHighAccuracy {
		level = geoclue2.GClueAccuracyLevelExact
	}
	if err = client.SetRequestedAccuracyLevel(level); err != nil {
		return nil, fmt.Errorf("failed to set requested accuracy level: %w", err)
	}

	return client, nil
}

func (s *Source) fixFromUpdate(client geoclue2.GeoclueClient, update *dbus.Signal) (tracker.Fix, error) {
	var zero tracker.Fix
	_, location, err := client.ParseLocationUpdated(update)
	if err != nil {
		return zero, fmt.Errorf("failed to parse geo location update: %w", err)
	}

	latitude, err := location.GetLatitude()
	if err != nil {
		return zero, fmt.Errorf("failed to get latitude from geo location update: %w", err)
	}
	longitude, err := location.GetLongitude()
	if err != nil {
		return zero, fmt.Errorf("failed to get longitude from geo location update: %w", err)
	}
	accuracy, err := location.GetAccuracy()
	if err != nil {
		return zero, fmt.Errorf("failed to get geo location accuracy: %w", err)
	}
	speed, err := location.GetSpeed()
	if err != nil || speed < 0 {
		// GeoClue reports -1 when the receiver knows no speed
		speed = 0
	}

	return tracker.Fix{
		Latitude:       latitude,
		Longitude:      longitude,
		AccuracyMeters: accuracy,
		SpeedMPS:       speed,
		TimestampMS:    time.Now().UnixMilli(),
		Provider:       s.name,
	}, nil
}

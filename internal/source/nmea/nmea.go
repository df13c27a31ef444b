// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package nmea provides a location source reading NMEA 0183 sentences
// from a serial GPS receiver.
package nmea

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/citywalk/fixtrack/internal/source"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const (
	knotsToMPS = 0.514444

	// hdopUERE converts a dimensionless HDOP into an accuracy estimate in
	// meters, based on a typical consumer receiver ranging error.
	hdopUERE = 5.0
	// fallbackAccuracy is used until the first GGA sentence reported an HDOP.
	fallbackAccuracy = 25.0
)

// Source streams fixes parsed from RMC sentences on a serial port. GGA
// sentences are used to derive the accuracy estimate.
type Source struct {
	name string
	port string
	baud int

	// openFn is a test seam; it defaults to opening the serial port.
	openFn func() (io.ReadCloser, error)
}

// New returns an NMEA Source for the given serial port and baud rate.
func New(port string, baud int) *Source {
	s := &Source{
		name: "nmea",
		port: port,
		baud: baud,
	}
	s.openFn = s.openPort
	return s
}

func (s *Source) Name() string {
	return s.name
}

// Stream opens the serial port and emits a fix for every valid RMC
// sentence. The returned channel closes when the port read fails or the
// context is cancelled.
func (s *Source) Stream(ctx context.Context, _ source.Options) (<-chan tracker.Fix, error) {
	port, err := s.openFn()
	if err != nil {
		return nil, err
	}

	// unblock the reader when the caller is done
	go func() {
		<-ctx.Done()
		_ = port.Close()
	}()

	out := make(chan tracker.Fix)
	go func() {
		defer close(out)
		defer func() { _ = port.Close() }()

		hdop := 0.0
		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "$") {
				continue
			}

			// noisy receivers emit partial sentences, skip anything unparsable
			sentence, err := gonmea.Parse(line)
			if err != nil {
				continue
			}

			switch sentence.DataType() {
			case gonmea.TypeGGA:
				gga := sentence.(gonmea.GGA)
				if gga.HDOP > 0 {
					hdop = gga.HDOP
				}
			case gonmea.TypeRMC:
				rmc := sentence.(gonmea.RMC)
				if rmc.Validity != gonmea.ValidRMC {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- s.fixFromRMC(rmc, hdop, time.Now()):
				}
			}
		}
	}()

	return out, nil
}

func (s *Source) openPort() (io.ReadCloser, error) {
	return serial.Open(s.port, &serial.Mode{BaudRate: s.baud})
}

// fixFromRMC converts an RMC sentence into a fix. The speed over ground
// arrives in knots and is converted to m/s at this boundary; accuracy is
// estimated from the last seen HDOP.
func (s *Source) fixFromRMC(rmc gonmea.RMC, hdop float64, now time.Time) tracker.Fix {
	acc := fallbackAccuracy
	if hdop > 0 {
		acc = hdop * hdopUERE
	}

	return tracker.Fix{
		Latitude:       rmc.Latitude,
		Longitude:      rmc.Longitude,
		AccuracyMeters: acc,
		SpeedMPS:       rmc.Speed * knotsToMPS,
		TimestampMS:    now.UnixMilli(),
		Provider:       s.name,
	}
}

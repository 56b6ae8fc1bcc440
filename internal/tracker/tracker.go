// Package tracker reads head orientation from a serial IMU that prints one
// "i,j,k,real" quaternion per line.
package tracker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"fortio.org/log"
	"github.com/go-gl/mathgl/mgl64"
	"go.bug.st/serial"
)

// DefaultRetry is the wait between reconnect attempts.
const DefaultRetry = 5 * time.Second

// Orientation is the look direction in radians. Positive yaw turns left,
// positive pitch looks up.
type Orientation struct {
	Yaw   float64
	Pitch float64
}

// ParseQuaternion parses a line in format "i,j,k,real".
func ParseQuaternion(line string) (mgl64.Quat, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 4 {
		return mgl64.Quat{}, fmt.Errorf("expected 4 values, got %d", len(parts))
	}
	var v [4]float64
	for n, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mgl64.Quat{}, fmt.Errorf("invalid %s value: %w", [4]string{"i", "j", "k", "real"}[n], err)
		}
		v[n] = f
	}
	q := mgl64.Quat{W: v[3], V: mgl64.Vec3{v[0], v[1], v[2]}}
	if q.Len() < 1e-9 {
		return mgl64.Quat{}, errors.New("zero quaternion")
	}
	return q.Normalize(), nil
}

// OrientationOf returns where the -Z forward axis points after rotation by q.
func OrientationOf(q mgl64.Quat) Orientation {
	f := q.Rotate(mgl64.Vec3{0, 0, -1})
	return Orientation{
		Yaw:   math.Atan2(-f.X(), -f.Z()),
		Pitch: math.Asin(mgl64.Clamp(f.Y(), -1, 1)),
	}
}

// Tracker keeps the latest orientation read from a serial port.
type Tracker struct {
	port  string
	mode  *serial.Mode
	retry time.Duration
	open  func(name string, mode *serial.Mode) (io.ReadCloser, error)

	mu     sync.RWMutex
	latest Orientation
	valid  bool
}

// New creates a tracker for port at baud.
func New(port string, baud int) *Tracker {
	return &Tracker{
		port:  port,
		mode:  &serial.Mode{BaudRate: baud},
		retry: DefaultRetry,
		open: func(name string, mode *serial.Mode) (io.ReadCloser, error) {
			return serial.Open(name, mode)
		},
	}
}

// Orientation returns the most recent reading; ok is false until the first
// valid line arrives.
func (t *Tracker) Orientation() (o Orientation, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.valid
}

// Run reads the port until ctx is done, reopening it after errors.
func (t *Tracker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		port, err := t.open(t.port, t.mode)
		if err != nil {
			log.Warnf("Error opening serial port %s: %v. Retrying in %v", t.port, err, t.retry)
			if !sleep(ctx, t.retry) {
				return
			}
			continue
		}
		log.Infof("Successfully opened serial port: %s", t.port)
		stop := context.AfterFunc(ctx, func() { port.Close() })
		err = t.consume(port)
		stop()
		port.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warnf("Error reading from serial port %s: %v", t.port, err)
		}
		log.Infof("Serial port %s closed. Reconnecting...", t.port)
		if !sleep(ctx, t.retry) {
			return
		}
	}
}

func (t *Tracker) consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		q, err := ParseQuaternion(line)
		if err != nil {
			log.LogVf("Error parsing quaternion: %v (line: %q)", err, line)
			continue
		}
		o := OrientationOf(q)
		t.mu.Lock()
		t.latest, t.valid = o, true
		t.mu.Unlock()
	}
	return scanner.Err()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

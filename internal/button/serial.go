package button

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/weatherbird/provisioning/internal/logging"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate is the line speed of the button controller.
const DefaultBaudRate = 115200

const pollInterval = 100 * time.Millisecond

// SerialSource reads button edges from a microcontroller on a serial line.
// Each line is one of P (pressed), R (released) or L (long press already
// detected by the controller). Other lines are ignored.
type SerialSource struct {
	port     io.ReadCloser
	detector *HoldDetector
	now      func() time.Time
}

// OpenSerial opens a serial port for button input.
func OpenSerial(name string, baud int, threshold time.Duration) (*SerialSource, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	// A read timeout lets the hold detector be polled while the line is idle.
	if err := p.SetReadTimeout(pollInterval); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	logging.Info("Button serial port opened", zap.String("port", name), zap.Int("baud", baud))
	return NewSerialSource(p, threshold), nil
}

// NewSerialSource wraps an already open line. A read returning no data and
// no error is treated as an idle timeout.
func NewSerialSource(port io.ReadCloser, threshold time.Duration) *SerialSource {
	return &SerialSource{port: port, detector: NewHoldDetector(threshold), now: time.Now}
}

// Events implements Source. The port is closed when ctx is done or the
// line fails.
func (s *SerialSource) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, 4)

	go func() {
		<-ctx.Done()
		_ = s.port.Close()
	}()

	go func() {
		defer close(out)
		emit := func(ev Event, ok bool) bool {
			if !ok {
				return true
			}
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		buf := make([]byte, 64)
		var line strings.Builder
		for {
			n, err := s.port.Read(buf)
			if ctx.Err() != nil {
				return
			}
			for _, b := range buf[:n] {
				if b != '\n' {
					line.WriteByte(b)
					continue
				}
				if !emit(s.handleLine(line.String())) {
					return
				}
				line.Reset()
			}
			if !emit(s.detector.Poll(s.now())) {
				return
			}
			if err != nil {
				if err != io.EOF {
					logging.Warn("Button serial line failed", zap.Error(err))
				}
				return
			}
		}
	}()
	return out
}

func (s *SerialSource) handleLine(line string) (Event, bool) {
	switch strings.TrimSpace(line) {
	case "P":
		return s.detector.Press(s.now())
	case "R":
		return s.detector.Release(s.now())
	case "L":
		return LongPress, true
	case "":
		return 0, false
	default:
		logging.Debug("Ignoring unknown button line", zap.String("line", line))
		return 0, false
	}
}

package button

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalSource reports a long press for every SIGUSR1 the process receives.
type SignalSource struct {
	Signal os.Signal
}

// NewSignalSource creates a source listening for SIGUSR1.
func NewSignalSource() *SignalSource {
	return &SignalSource{Signal: syscall.SIGUSR1}
}

// Events implements Source.
func (s *SignalSource) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, s.Signal)

	go func() {
		defer close(out)
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				select {
				case out <- LongPress:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

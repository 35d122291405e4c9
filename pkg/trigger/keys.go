package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattn/go-tty"
)

// Keys is a trigger source reading single keypresses from the terminal,
// the workbench stand-in for the locker's physical button.
type Keys struct {
	runes  map[rune]bool
	logger *slog.Logger
}

// NewKeys creates a keyboard source firing on any of the given runes.
// With no runes it fires on 'c' and 'C', like the firmware's serial
// command.
func NewKeys(runes ...rune) *Keys {
	if len(runes) == 0 {
		runes = []rune{'c', 'C'}
	}
	set := make(map[rune]bool, len(runes))
	for _, r := range runes {
		set[r] = true
	}
	return &Keys{
		runes:  set,
		logger: slog.Default().With("component", "trigger.keys"),
	}
}

// Run reads keypresses until the context ends, sending an Event for each
// matching rune. Events are dropped rather than queued when the channel
// is full; a trigger during an active invocation is ignored anyway.
func (k *Keys) Run(ctx context.Context, events chan<- Event) error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	defer t.Close()

	runes := make(chan rune)
	go func() {
		defer close(runes)
		for {
			r, err := t.ReadRune()
			if err != nil {
				return
			}
			select {
			case runes <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-runes:
			if !ok {
				return nil
			}
			if !k.runes[r] {
				continue
			}
			ev := Event{Source: "keys", At: time.Now()}
			select {
			case events <- ev:
				k.logger.Debug("trigger", "source", ev.Source)
			default:
				k.logger.Debug("trigger dropped, channel full")
			}
		}
	}
}

var _ Source = (*Keys)(nil)

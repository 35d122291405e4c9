package status

import (
	"testing"
	"time"
)

// recordLED counts on-transitions.
type recordLED struct {
	flashes int
	on      bool
}

func (l *recordLED) Set(on bool) error {
	if on && !l.on {
		l.flashes++
	}
	l.on = on
	return nil
}

func newTestBlinker(led LED) *Blinker {
	b := NewBlinker(led)
	b.sleep = func(time.Duration) {}
	return b
}

func TestBlinkerPatterns(t *testing.T) {
	want := map[Code]int{
		CodeSuccess:          2,
		CodeTransportFailure: 3,
		CodeSizeExceeded:     4,
		CodeSensorFailure:    5,
	}

	for code, flashes := range want {
		led := &recordLED{}
		newTestBlinker(led).Signal(code)
		if led.flashes != flashes {
			t.Errorf("%s: got %d flashes, want %d", code, led.flashes, flashes)
		}
		if led.on {
			t.Errorf("%s: led left on", code)
		}
	}
}

func TestBlinkerPatternsDistinct(t *testing.T) {
	seen := map[int]Code{}
	for code, p := range patterns {
		if prev, dup := seen[p.count]; dup {
			t.Errorf("codes %s and %s share blink count %d", prev, code, p.count)
		}
		seen[p.count] = code
	}
}

func TestMultiFansOut(t *testing.T) {
	a := &recordLED{}
	b := &recordLED{}
	m := Multi{newTestBlinker(a), newTestBlinker(b)}
	m.Signal(CodeSuccess)

	if a.flashes != 2 || b.flashes != 2 {
		t.Errorf("fan-out: got %d/%d flashes, want 2/2", a.flashes, b.flashes)
	}
}

func TestCodeStrings(t *testing.T) {
	for code, want := range map[Code]string{
		CodeSuccess:          "success",
		CodeSensorFailure:    "sensor-failure",
		CodeTransportFailure: "transport-failure",
		CodeSizeExceeded:     "size-exceeded",
	} {
		if code.String() != want {
			t.Errorf("String(%d): got %q, want %q", code, code.String(), want)
		}
	}
}

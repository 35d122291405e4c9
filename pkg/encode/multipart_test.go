package encode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bumpbox/go-bumpbox/pkg/sensor"
)

func TestEncodeExactLength(t *testing.T) {
	e := NewEncoder()

	for _, imageLen := range []int{0, 1, 1024, 800_000} {
		f := &sensor.Frame{Data: make([]byte, imageLen)}
		p, err := e.Encode(f)
		if err != nil {
			t.Fatalf("Encode(%d bytes): %v", imageLen, err)
		}
		want := Overhead() + imageLen
		if p.Len() != want {
			t.Errorf("Encode(%d bytes): body length %d, want %d", imageLen, p.Len(), want)
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0x00, 0x01, 0xFF, 0xD9}
	f := &sensor.Frame{Data: image}

	p, err := NewEncoder().Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	body := string(p.Data)

	if !strings.HasPrefix(body, "--"+Boundary+"\r\n") {
		t.Error("body does not open with the boundary")
	}
	if !strings.HasSuffix(body, "\r\n--"+Boundary+"--\r\n") {
		t.Error("body does not end with the closing boundary")
	}
	if !strings.Contains(body, `name="image"; filename="capture.jpg"`) {
		t.Error("content disposition missing field name or filename")
	}
	if !strings.Contains(body, "Content-Type: image/jpeg\r\n\r\n") {
		t.Error("part content type missing")
	}
	// Image bytes are carried verbatim between header and footer.
	if !bytes.Contains(p.Data, image) {
		t.Error("image bytes not carried verbatim")
	}
}

func TestEncodeBudget(t *testing.T) {
	e := NewEncoder(WithBodyBudget(Overhead() + 10))

	ok := &sensor.Frame{Data: make([]byte, 10)}
	if _, err := e.Encode(ok); err != nil {
		t.Errorf("body at budget rejected: %v", err)
	}

	over := &sensor.Frame{Data: make([]byte, 11)}
	if _, err := e.Encode(over); !errors.Is(err, ErrBodyBudget) {
		t.Errorf("got %v, want ErrBodyBudget", err)
	}
}

func TestContentTypeDeclaresBoundary(t *testing.T) {
	ct := ContentType()
	if ct != "multipart/form-data; boundary="+Boundary {
		t.Errorf("unexpected content type %q", ct)
	}
}

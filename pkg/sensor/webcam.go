package sensor

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam is a Sensor backed by a V4L/UVC capture device via gocv. The
// driver keeps its own small frame queue, so the first frame read after
// an illumination change can predate it; the pool depth is emulated with
// a token channel so ownership mistakes surface the same way they would
// on the hardware.
type Webcam struct {
	cfg   Config
	cap   *gocv.VideoCapture
	slots chan struct{}

	mu     sync.Mutex
	closed bool
}

// OpenWebcam opens a capture device with the given profile.
func OpenWebcam(device int, cfg Config) (*Webcam, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("sensor: invalid config: %v", errs)
	}

	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("sensor: open device %d: %w", device, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	slots := make(chan struct{}, cfg.Buffers)
	for i := 0; i < cfg.Buffers; i++ {
		slots <- struct{}{}
	}

	return &Webcam{cfg: cfg, cap: cap, slots: slots}, nil
}

// Acquire takes a pool slot, reads one frame and returns it JPEG
// encoded. It fails with ErrNoFreeBuffer when all slots are held.
func (w *Webcam) Acquire(ctx context.Context) (*Frame, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.mu.Unlock()

	select {
	case <-w.slots:
	default:
		return nil, ErrNoFreeBuffer
	}
	if err := ctx.Err(); err != nil {
		w.slots <- struct{}{}
		return nil, err
	}

	img := gocv.NewMat()
	defer img.Close()

	w.mu.Lock()
	ok := w.cap.Read(&img)
	w.mu.Unlock()
	if !ok || img.Empty() {
		w.slots <- struct{}{}
		return nil, ErrReadFailed
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, w.cfg.Quality})
	if err != nil {
		w.slots <- struct{}{}
		return nil, fmt.Errorf("sensor: jpeg encode: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	return &Frame{
		Data:   data,
		Width:  img.Cols(),
		Height: img.Rows(),
	}, nil
}

// Release returns the frame's slot to the pool.
func (w *Webcam) Release(f *Frame) {
	if f == nil {
		return
	}
	select {
	case w.slots <- struct{}{}:
	default:
		// over-release; the pool is already full
	}
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.cap.Close()
}

var _ Sensor = (*Webcam)(nil)

package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"taxi-client/internal/api"
	"taxi-client/internal/models"
)

type manualSource struct {
	ch      chan models.Position
	watches int32
}

func newManualSource() *manualSource {
	return &manualSource{ch: make(chan models.Position, 16)}
}

func (m *manualSource) Watch(ctx context.Context) (<-chan models.Position, error) {
	atomic.AddInt32(&m.watches, 1)
	out := make(chan models.Position)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case pos, ok := <-m.ch:
				if !ok {
					return
				}
				select {
				case out <- pos:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *manualSource) emit(lat, lng float64) {
	m.ch <- models.Position{Lat: lat, Lng: lng, Timestamp: time.Now().Unix()}
}

func locationSink(t *testing.T, pushes *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/driver/location" {
			atomic.AddInt32(pushes, 1)
		}
		w.Write([]byte(`{"message":"ok"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func waitPushes(t *testing.T, pushes *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(pushes) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d pushes, got %d", want, atomic.LoadInt32(pushes))
}

func TestStreamerThrottlesPushes(t *testing.T) {
	var pushes int32
	server := locationSink(t, &pushes)
	source := newManualSource()

	// wsURL пуст: поток уходит обычным POST
	s := NewLocationStreamer(api.NewClient(server.URL), "", source, 100*time.Millisecond, time.Second)
	s.Start()
	defer s.Stop()

	source.emit(51.1, 71.4)
	waitPushes(t, &pushes, 1)

	// Частые позиции внутри интервала отбрасываются
	for i := 0; i < 5; i++ {
		source.emit(51.1, 71.4)
	}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&pushes); got != 1 {
		t.Fatalf("throttle failed: %d pushes inside the interval", got)
	}

	// После интервала следующая позиция проходит
	time.Sleep(100 * time.Millisecond)
	source.emit(51.2, 71.5)
	waitPushes(t, &pushes, 2)
}

func TestStreamerStartIsIdempotent(t *testing.T) {
	var pushes int32
	server := locationSink(t, &pushes)
	source := newManualSource()

	s := NewLocationStreamer(api.NewClient(server.URL), "", source, 100*time.Millisecond, time.Second)
	s.Start()
	s.Start()
	s.Start()
	defer s.Stop()

	source.emit(51.1, 71.4)
	waitPushes(t, &pushes, 1)

	// Вторая подписка на источник была бы утечкой
	if got := atomic.LoadInt32(&source.watches); got != 1 {
		t.Fatalf("expected a single source subscription, got %d", got)
	}
}

func TestStreamerStop(t *testing.T) {
	var pushes int32
	server := locationSink(t, &pushes)
	source := newManualSource()

	s := NewLocationStreamer(api.NewClient(server.URL), "", source, 10*time.Millisecond, time.Second)
	s.Start()

	source.emit(51.1, 71.4)
	waitPushes(t, &pushes, 1)

	s.Stop()
	if s.Running() {
		t.Fatal("streamer must stop immediately")
	}

	source.emit(51.2, 71.5)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&pushes); got != 1 {
		t.Fatalf("stopped streamer must not push, got %d", got)
	}
}

func TestStreamerAcquireTimeout(t *testing.T) {
	var pushes int32
	server := locationSink(t, &pushes)
	source := newManualSource() // позиций не будет

	s := NewLocationStreamer(api.NewClient(server.URL), "", source, 10*time.Millisecond, 30*time.Millisecond)
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for s.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Running() {
		t.Fatal("streamer must give up when no position arrives in time")
	}
	if atomic.LoadInt32(&pushes) != 0 {
		t.Fatal("nothing to push without a position")
	}
}

func TestControllerDrivesStreaming(t *testing.T) {
	var pushes int32
	server := locationSink(t, &pushes)
	source := newManualSource()

	client := api.NewClient(server.URL)
	s := NewLocationStreamer(client, "", source, 10*time.Millisecond, time.Second)
	c := NewController(client, s)

	if err := c.SetAvailability(context.Background(), true); err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if !s.Running() {
		t.Fatal("going online must start the stream")
	}

	if err := c.SetAvailability(context.Background(), false); err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if s.Running() {
		t.Fatal("going offline without a ride must stop the stream")
	}
}

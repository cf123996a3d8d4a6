package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// recordingHandler collects slog.Records for test assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
	delay   time.Duration
	attrs   []slog.Attr
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	h.attrs = append(h.attrs, attrs...)
	h.mu.Unlock()
	return h
}

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func (h *recordingHandler) snapshot() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), h.records...)
}

func emit(h slog.Handler, msg string) {
	_ = h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0))
}

func TestAsyncHandlerWritesAndFlushes(t *testing.T) {
	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, 1000, 2)

	const total = 200
	for range total {
		emit(ah, "task tick")
	}
	ah.Close()

	if got := len(inner.snapshot()); got != total {
		t.Fatalf("expected %d records after close, got %d", total, got)
	}
	if ah.DroppedCount() != 0 {
		t.Fatalf("expected no drops, got %d", ah.DroppedCount())
	}
}

func TestAsyncHandlerConcurrentWrites(t *testing.T) {
	const goroutines, perGoroutine = 20, 50

	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, goroutines*perGoroutine, 4)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range perGoroutine {
				emit(ah, "concurrent")
			}
		})
	}
	wg.Wait()
	ah.Close()

	if got := len(inner.snapshot()); got != goroutines*perGoroutine {
		t.Fatalf("expected %d records, got %d", goroutines*perGoroutine, got)
	}
}

func TestAsyncHandlerReportsDrops(t *testing.T) {
	inner := &recordingHandler{delay: 10 * time.Millisecond}
	ah := NewAsyncHandler(inner, 1, 1)

	for range 50 {
		emit(ah, "flood")
	}
	ah.Close()

	dropped := ah.DroppedCount()
	if dropped == 0 {
		t.Fatal("expected some records to be dropped")
	}

	recs := inner.snapshot()
	last := recs[len(recs)-1]
	if last.Message != "log records dropped" || last.Level != slog.LevelWarn {
		t.Fatalf("expected a final drop warning, got %q at %s", last.Message, last.Level)
	}
	var reported int64
	last.Attrs(func(a slog.Attr) bool {
		if a.Key == "dropped" {
			reported = a.Value.Int64()
		}
		return true
	})
	if reported != dropped {
		t.Fatalf("expected dropped=%d in warning, got %d", dropped, reported)
	}
}

func TestAsyncHandlerDerivedShareBuffer(t *testing.T) {
	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, 10, 1)
	derived := ah.WithAttrs([]slog.Attr{slog.String("service", "tasktimer")}).(*AsyncHandler)

	emit(ah, "base")
	emit(derived, "derived")
	ah.Close()

	if got := len(inner.snapshot()); got != 2 {
		t.Fatalf("expected both records through one buffer, got %d", got)
	}
	if derived.DroppedCount() != ah.DroppedCount() {
		t.Fatal("derived handler must share the drop counter")
	}
}

func TestAsyncHandlerCloseTwice(t *testing.T) {
	ah := NewAsyncHandler(&recordingHandler{}, 1, 1)
	ah.Close()
	ah.Close()
}

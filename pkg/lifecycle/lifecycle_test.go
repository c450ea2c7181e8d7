package lifecycle_test

import (
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/courier/pkg/lifecycle"
)

type checker struct {
	ready atomic.Bool
}

func (c *checker) Ready() bool { return c.ready.Load() }

func TestReady(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("ready before WaitForStartup")
	}

	lc.WaitForStartup()
	if !lc.Ready() {
		t.Error("not ready after WaitForStartup with nothing tracked")
	}
}

func TestReadyTracksSubsystems(t *testing.T) {
	lc := lifecycle.New()

	db, store := &checker{}, &checker{}
	lc.Track("database", db)
	lc.Track("storage", store)

	if got := lc.Pending(); !slices.Equal(got, []string{lifecycle.StartupPending, "database", "storage"}) {
		t.Errorf("pending before startup = %v", got)
	}

	lc.OnStartup(func() { db.ready.Store(true) })
	lc.WaitForStartup()

	if lc.Ready() {
		t.Error("ready while storage is not")
	}
	if got := lc.Pending(); !slices.Equal(got, []string{"storage"}) {
		t.Errorf("pending = %v, want [storage]", got)
	}

	store.ready.Store(true)
	if !lc.Ready() {
		t.Error("not ready once every subsystem is ready")
	}

	db.ready.Store(false)
	if lc.Ready() {
		t.Error("ready after database dropped")
	}
	if got := lc.Pending(); !slices.Equal(got, []string{"database"}) {
		t.Errorf("pending = %v, want [database]", got)
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() { count.Add(1) })
	}
	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks = %d, want 3", got)
	}
}

func TestShutdown(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !cleaned.Load() {
		t.Error("shutdown hook did not run")
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context not cancelled after shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})
	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}

package proxy

import (
	"testing"
	"time"
)

type fakeConn struct {
	name   string
	closed chan string
}

func (c *fakeConn) Close() error {
	c.closed <- c.name
	return nil
}

func TestDestinationMap_ResetClosesOnlyInactive(t *testing.T) {
	t.Parallel()

	cfg := &Config{Route: NullRouteForTests(), LoadedAt: time.Now()}
	p := newTestProxy(t, Options{}, cfg, nil)

	closed := make(chan string, 4)
	stale := &fakeConn{name: "stale", closed: closed}
	fresh := &fakeConn{name: "fresh", closed: closed}

	p.runInLoopWait(func() {
		d := p.dmap.Register("stale", stale)
		d.lastActive = time.Now().Add(-time.Hour)
		p.dmap.Register("fresh", fresh)

		p.dmap.resetInactive(time.Minute)
	})

	select {
	case name := <-closed:
		if name != "stale" {
			t.Fatalf("closed %q, want stale", name)
		}
	default:
		t.Fatal("stale connection was not closed")
	}
	select {
	case name := <-closed:
		t.Fatalf("active connection %q was closed", name)
	default:
	}

	// The destination entry itself survives; only its connection is reset.
	p.runInLoopWait(func() {
		if _, ok := p.dmap.Find("stale"); !ok {
			t.Error("stale destination dropped from the map")
		}
		if p.dmap.Len() != 2 {
			t.Errorf("Len = %d, want 2", p.dmap.Len())
		}
	})
}

func TestDestinationMap_ResetTimerSweeps(t *testing.T) {
	t.Parallel()

	cfg := &Config{Route: NullRouteForTests(), LoadedAt: time.Now()}
	p := newTestProxy(t, Options{ResetInactiveConnectionInterval: 10 * time.Millisecond}, cfg, nil)

	closed := make(chan string, 1)
	p.runInLoopWait(func() {
		d := p.dmap.Register("idle", &fakeConn{name: "idle", closed: closed})
		d.lastActive = time.Now().Add(-time.Hour)
	})

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("reset timer never swept the idle connection")
	}
}

func TestDestinationMap_MarkActiveDefersReset(t *testing.T) {
	t.Parallel()

	cfg := &Config{Route: NullRouteForTests(), LoadedAt: time.Now()}
	p := newTestProxy(t, Options{}, cfg, nil)

	closed := make(chan string, 1)
	p.runInLoopWait(func() {
		d := p.dmap.Register("busy", &fakeConn{name: "busy", closed: closed})
		d.lastActive = time.Now().Add(-time.Hour)
		d.MarkActive(time.Now())
		p.dmap.resetInactive(time.Minute)
	})

	select {
	case <-closed:
		t.Fatal("recently-active connection was reset")
	default:
	}
}

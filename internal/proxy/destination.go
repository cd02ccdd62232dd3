package proxy

import (
	"io"
	"log/slog"
	"time"
)

// Destination is one backend endpoint handle tracked by a worker. The
// transport registers the connection closer; the map only manages lifetime.
type Destination struct {
	Name string

	conn       io.Closer
	lastActive time.Time
}

// MarkActive records use of the destination, deferring inactivity reset.
func (d *Destination) MarkActive(now time.Time) {
	d.lastActive = now
}

// DestinationMap tracks a worker's backend destinations and periodically
// tears down connections that have gone inactive. Worker-exclusive; the
// reset timer posts its sweeps onto the owning worker's loop.
type DestinationMap struct {
	p      *Proxy
	logger *slog.Logger

	dests map[string]*Destination

	resetStop chan struct{}
}

func newDestinationMap(p *Proxy, logger *slog.Logger) *DestinationMap {
	return &DestinationMap{
		p:      p,
		logger: logger,
		dests:  make(map[string]*Destination),
	}
}

// Register adds or replaces a destination. Worker loop only.
func (m *DestinationMap) Register(name string, conn io.Closer) *Destination {
	if prev, ok := m.dests[name]; ok && prev.conn != nil {
		_ = prev.conn.Close()
	}
	d := &Destination{Name: name, conn: conn, lastActive: time.Now()}
	m.dests[name] = d
	return d
}

// Find returns the destination registered under name. Worker loop only.
func (m *DestinationMap) Find(name string) (*Destination, bool) {
	d, ok := m.dests[name]
	return d, ok
}

// Len reports the number of registered destinations. Worker loop only.
func (m *DestinationMap) Len() int {
	return len(m.dests)
}

// SetResetTimer arms the periodic inactivity sweep. Each tick posts a sweep
// onto the worker loop that closes connections idle longer than interval.
// A second call replaces the previous timer.
func (m *DestinationMap) SetResetTimer(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.stopResetTimer()
	stop := make(chan struct{})
	m.resetStop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.p.RunInLoop(func() { m.resetInactive(interval) })
			case <-stop:
				return
			}
		}
	}()
}

func (m *DestinationMap) stopResetTimer() {
	if m.resetStop != nil {
		close(m.resetStop)
		m.resetStop = nil
	}
}

// resetInactive closes connections idle longer than olderThan. Worker loop
// only.
func (m *DestinationMap) resetInactive(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	for _, d := range m.dests {
		if d.conn != nil && d.lastActive.Before(cutoff) {
			m.logger.Debug("proxy: resetting inactive connection", "destination", d.Name)
			_ = d.conn.Close()
			d.conn = nil
		}
	}
}

// close tears down the reset timer and every destination connection. Runs
// on the worker loop during proxy destruction, before the message queue is
// drained.
func (m *DestinationMap) close() {
	m.stopResetTimer()
	for _, d := range m.dests {
		if d.conn != nil {
			_ = d.conn.Close()
			d.conn = nil
		}
	}
	m.dests = make(map[string]*Destination)
}

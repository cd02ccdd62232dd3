package proxy

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// statID indexes one counter in the worker's stats registry.
type statID int

// Registry counters. Fast counters are only touched on the worker loop;
// safe counters may be bumped from any goroutine.
const (
	statRequestSent statID = iota
	statRequestSentCount
	statReqsProcessing
	statReqsWaiting
	statBusyReplies
	statLocalErrors
	statWaitingTimeouts
	statClientQueueNotifications
	statConfigLastSuccess
	numStats
)

type statFlavor uint8

const (
	statFast statFlavor = iota
	statSafe
)

type statDef struct {
	name   string
	group  string
	flavor statFlavor
}

var statDefs = [numStats]statDef{
	statRequestSent:              {"request_sent", "proxy", statFast},
	statRequestSentCount:         {"request_sent_count", "proxy", statFast},
	statReqsProcessing:           {"proxy_reqs_processing", "proxy", statFast},
	statReqsWaiting:              {"proxy_reqs_waiting", "proxy", statFast},
	statBusyReplies:              {"busy_replies", "proxy", statFast},
	statLocalErrors:              {"local_errors", "proxy", statFast},
	statWaitingTimeouts:          {"waiting_timeouts", "proxy", statFast},
	statClientQueueNotifications: {"client_queue_notifications", "queue", statSafe},
	statConfigLastSuccess:        {"config_last_success", "config", statSafe},
}

// Stats is a worker's counter registry. Fast counters avoid atomics because
// all access is confined to the worker loop; safe counters use atomics for
// producers outside the worker (queue notifications, config swaps).
type Stats struct {
	fast     [numStats]int64
	safe     [numStats]atomic.Int64
	incoming [protocol.KindShutdown + 1]int64
}

// Increment bumps a fast counter. Worker loop only.
func (s *Stats) Increment(id statID) {
	s.fast[id]++
}

// Decrement lowers a fast counter. Worker loop only.
func (s *Stats) Decrement(id statID) {
	s.fast[id]--
}

// IncrementSafe bumps an atomic counter. Safe from any goroutine.
func (s *Stats) IncrementSafe(id statID) {
	s.safe[id].Add(1)
}

// SetValueSafe stores v into an atomic counter. Safe from any goroutine.
func (s *Stats) SetValueSafe(id statID, v int64) {
	s.safe[id].Store(v)
}

// BumpIncoming counts one incoming routable request of the given kind.
// Worker loop only.
func (s *Stats) BumpIncoming(k protocol.Kind) {
	if int(k) < len(s.incoming) {
		s.incoming[k]++
	}
}

// Snapshot is a point-in-time copy of a worker's counters, keyed by stat
// name. Incoming per-kind counters appear as "incoming_<kind>".
type Snapshot map[string]int64

// snapshot copies the registry. Worker loop only (fast counters are not
// synchronized).
func (s *Stats) snapshot() Snapshot {
	out := make(Snapshot, int(numStats)+len(s.incoming))
	for id := statID(0); id < numStats; id++ {
		switch statDefs[id].flavor {
		case statFast:
			out[statDefs[id].name] = s.fast[id]
		case statSafe:
			out[statDefs[id].name] = s.safe[id].Load()
		}
	}
	for k, v := range s.incoming {
		if v != 0 {
			out["incoming_"+protocol.Kind(k).String()] = v
		}
	}
	return out
}

// statsReply renders the registry as a text reply, one "STAT name value"
// line per counter followed by "END". The request key selects a stats group ("", "all", "proxy",
// "queue", "config"); an unknown group is an error.
func (s *Stats) statsReply(group string) (protocol.Reply, error) {
	group = strings.TrimSpace(group)
	if group != "" && group != "all" {
		known := false
		for id := statID(0); id < numStats; id++ {
			if statDefs[id].group == group {
				known = true
				break
			}
		}
		if !known {
			return protocol.Reply{}, fmt.Errorf("%w: %q", ErrUnknownStatsGroup, group)
		}
	}

	snap := s.snapshot()
	var b strings.Builder
	for _, name := range sortedStatNames(group) {
		fmt.Fprintf(&b, "STAT %s %d\r\n", name, snap[name])
	}
	if group == "" || group == "all" {
		for _, line := range sortedIncoming(snap) {
			b.WriteString(line)
		}
	}
	b.WriteString("END\r\n")
	return protocol.ValueReply([]byte(b.String())), nil
}

func sortedStatNames(group string) []string {
	names := make([]string, 0, numStats)
	for id := statID(0); id < numStats; id++ {
		if group == "" || group == "all" || statDefs[id].group == group {
			names = append(names, statDefs[id].name)
		}
	}
	sort.Strings(names)
	return names
}

func sortedIncoming(snap Snapshot) []string {
	lines := make([]string, 0, len(snap))
	for name, v := range snap {
		if strings.HasPrefix(name, "incoming_") {
			lines = append(lines, fmt.Sprintf("STAT %s %d\r\n", name, v))
		}
	}
	sort.Strings(lines)
	return lines
}

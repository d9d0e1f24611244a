package minutelog

import (
	"sync"

	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/store"
	"github.com/w200024212/pebbleos-sub017/internal/telemetry"
)

// ringCapacityM is how many minutes the buffer retains while waiting for
// its consumers, four hours.
const ringCapacityM = 240

// Buffer is the minute-sample ring between the recognition engine and
// its two consumers, the on-device record store and the phone telemetry
// link. Each consumer holds an independent cursor; a minute is released
// only once both cursors have passed it, and when the ring fills the
// slower cursor is forced forward and those minutes are lost to it.
//
// The newest minutes reported uncertain by the engine are withheld from
// both cursors, so that late sleep reclassification can still rewrite
// them in place.
type Buffer struct {
	mu sync.Mutex

	log            *zap.Logger
	localOffset15M int8

	entries [ringCapacityM]kalg.MinuteSample
	head    int
	count   int
	pushed  uint64 // total minutes ever pushed
	held    int    // newest minutes withheld as uncertain

	cursors []*cursor
	telem   *telemetrySink
}

type cursor struct {
	name     string
	consumed uint64 // sequence number of the next minute to hand out
	dropped  uint64
	s        sink
}

// NewBuffer wires a buffer to its store and transport. Either consumer
// may be nil, in which case the ring only retains minutes for the other.
func NewBuffer(st store.Store, tr telemetry.Transport, localOffset15M int8, log *zap.Logger) *Buffer {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Buffer{log: log, localOffset15M: localOffset15M}
	if st != nil {
		b.cursors = append(b.cursors, &cursor{name: "file", s: newFileSink(st, log)})
	}
	if tr != nil {
		ts := newTelemetrySink(tr, log)
		b.telem = ts
		b.cursors = append(b.cursors, &cursor{name: "telemetry", s: ts})
	}
	return b
}

func (b *Buffer) oldestSeq() uint64 { return b.pushed - uint64(b.count) }

func (b *Buffer) at(seq uint64) *kalg.MinuteSample {
	idx := (b.head + int(seq-b.oldestSeq())) % ringCapacityM
	return &b.entries[idx]
}

// Record appends one minute and lets both consumers drain whatever full
// batches are now available. uncertainM newest minutes stay withheld.
func (b *Buffer) Record(sample kalg.MinuteSample, uncertainM int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == ringCapacityM {
		b.dropOldestLocked()
	}
	*b.at(b.pushed) = sample
	b.count++
	b.pushed++
	b.held = uncertainM

	b.drainLocked(false)
	b.releaseLocked()
	return nil
}

// dropOldestLocked evicts the oldest retained minute, forcing forward
// every cursor still pointing at it.
func (b *Buffer) dropOldestLocked() {
	oldest := b.oldestSeq()
	for _, c := range b.cursors {
		if c.consumed == oldest {
			c.consumed++
			c.dropped++
			b.log.Warn("minute ring overflow, consumer lost a minute",
				zap.String("consumer", c.name),
				zap.Uint64("dropped_total", c.dropped))
		}
	}
	b.head = (b.head + 1) % ringCapacityM
	b.count--
}

// drainLocked offers batches to each sink. With force set, a trailing
// partial batch is offered too; this is the shutdown path.
func (b *Buffer) drainLocked(force bool) {
	certain := b.pushed - uint64(b.held)
	for _, c := range b.cursors {
		batchM := c.s.batchMinutes()
		for {
			avail := int(certain - c.consumed)
			if avail <= 0 {
				break
			}
			n := batchM
			if avail < n {
				if !force {
					break
				}
				n = avail
			}
			batch := make([]kalg.MinuteSample, n)
			for i := 0; i < n; i++ {
				batch[i] = *b.at(c.consumed + uint64(i))
			}
			if !c.s.write(batch, b.localOffset15M) {
				break
			}
			c.consumed += uint64(n)
		}
	}
}

// releaseLocked frees minutes already consumed by every cursor.
func (b *Buffer) releaseLocked() {
	if len(b.cursors) == 0 {
		// Nothing consumes; keep only the uncertain tail.
		for b.count > b.held {
			b.head = (b.head + 1) % ringCapacityM
			b.count--
		}
		return
	}
	low := b.pushed
	for _, c := range b.cursors {
		if c.consumed < low {
			low = c.consumed
		}
	}
	for b.oldestSeq() < low {
		b.head = (b.head + 1) % ringCapacityM
		b.count--
	}
}

// MarkSleep zeroes the step counts of retained minutes inside a sleep
// range that was recognized after the fact. Minutes already handed to a
// consumer are beyond repair; the uncertain hold-back keeps the horizon
// this can happen over inside the ring.
func (b *Buffer) MarkSleep(startUTC, endUTC uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for seq := b.oldestSeq(); seq < b.pushed; seq++ {
		e := b.at(seq)
		if e.UTC >= startUTC && e.UTC <= endUTC {
			e.Steps = 0
			e.Active = false
		}
	}
}

// Flush pushes everything out, partial batches included, and closes the
// telemetry session. Called on shutdown.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held = 0
	b.drainLocked(true)
	b.releaseLocked()
	if b.telem != nil {
		b.telem.close()
	}
	return nil
}

// Retained reports how many minutes the ring currently holds.
func (b *Buffer) Retained() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

var _ kalg.Recorder = (*Buffer)(nil)

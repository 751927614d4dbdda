package memory

import (
	"strconv"
	"sync/atomic"
	"time"
)

// IDGenerator issues "mem_<unix nanos>" ids. When the clock does not advance
// between calls the previous value plus one is used, so ids never repeat.
type IDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

func (g *IDGenerator) Next() string {
	for {
		prev := g.last.Load()
		n := g.now().UnixNano()
		if n <= prev {
			n = prev + 1
		}
		if g.last.CompareAndSwap(prev, n) {
			return "mem_" + strconv.FormatInt(n, 10)
		}
	}
}

package testutil

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"drive-go/internal/drive"
)

var (
	_ drive.Clock       = (*StubClock)(nil)
	_ drive.IDGenerator = (*StubIDGenerator)(nil)
)

// StubClock is a drive.Clock that only moves when a test advances it, so
// DeletedAt and UpdatedAt stamps can be compared exactly.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// FixedClock returns a StubClock stopped at 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return &StubClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, e.g. past a share link's expiry.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out "id-1", "id-2", ... in call order. Every value
// is a valid path segment, so it works as an upload name token as well as a
// record id or share link.
type StubIDGenerator struct {
	n atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator { return &StubIDGenerator{} }

func (g *StubIDGenerator) New() string {
	return "id-" + strconv.FormatInt(g.n.Add(1), 10)
}

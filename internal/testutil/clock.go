package testutil

import (
	"fmt"
	"sync"
	"time"
)

// InspectionMorning is the instant FixedClock reports.
var InspectionMorning = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a fieldsync.Clock that only moves when a test moves it.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock starts the clock at t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock is a StubClock at InspectionMorning, so generated record ids
// carry the date 20240115.
func FixedClock() *StubClock {
	return NewStubClock(InspectionMorning)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// StubSuffixGenerator hands out s0001, s0002 and so on, in call order.
type StubSuffixGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubSuffixGenerator() *StubSuffixGenerator {
	return &StubSuffixGenerator{}
}

func (g *StubSuffixGenerator) Suffix() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("s%04d", g.next)
}

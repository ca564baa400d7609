package exchanged

import (
	"time"

	"synthex/native/exchange"
)

// SlotClock derives the exchange clock from wall time: one slot elapses per
// slot duration after genesis.
type SlotClock struct {
	genesisSlot  uint64
	genesisTime  time.Time
	slotDuration time.Duration
	now          func() time.Time
}

func NewSlotClock(genesisSlot uint64, genesisTimestamp int64, slotDuration time.Duration) *SlotClock {
	if slotDuration <= 0 {
		slotDuration = 400 * time.Millisecond
	}
	return &SlotClock{
		genesisSlot:  genesisSlot,
		genesisTime:  time.Unix(genesisTimestamp, 0),
		slotDuration: slotDuration,
		now:          time.Now,
	}
}

// Now returns the clock for the current wall time. Before genesis it stays
// at the genesis slot.
func (c *SlotClock) Now() exchange.Clock {
	now := c.now()
	elapsed := now.Sub(c.genesisTime)
	if elapsed < 0 {
		elapsed = 0
	}
	return exchange.Clock{
		Slot:      c.genesisSlot + uint64(elapsed/c.slotDuration),
		Timestamp: now.Unix(),
	}
}

// monotonic never moves either component of the clock backwards.
func monotonic(prev, next exchange.Clock) exchange.Clock {
	if next.Slot < prev.Slot {
		next.Slot = prev.Slot
	}
	if next.Timestamp < prev.Timestamp {
		next.Timestamp = prev.Timestamp
	}
	return next
}

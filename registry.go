package fiberevent

import (
	"math/bits"
	"strconv"
)

// Event is a handle to a claimed event slot. The zero value is unset. A
// driver embeds an Event in its resource, claims it with [Core.Claim], and
// passes it back to [Core.Unclaim] when the resource is released.
type Event struct {
	// slot index plus one, zero means unset
	id uint16
}

func eventAt(slot int) Event {
	return Event{id: uint16(slot + 1)}
}

// Valid reports whether the handle refers to a slot.
func (e Event) Valid() bool {
	return e.id != 0
}

// Slot returns the slot index, or -1 if the handle is unset.
func (e Event) Slot() int {
	return int(e.id) - 1
}

func (e Event) String() string {
	if !e.Valid() {
		return "event(unset)"
	}
	return "event(" + strconv.Itoa(e.Slot()) + ")"
}

// word returns the word index and bit mask of the slot, which must be set.
func (e Event) word() (int, uint64) {
	slot := e.Slot()
	return slot / wordBits, 1 << (slot % wordBits)
}

// SlotKind discriminates [SlotInfo].
type SlotKind uint8

const (
	// SlotFree is a slot no core has claimed.
	SlotFree SlotKind = iota
	// SlotClaimed is a slot owned by one core.
	SlotClaimed
)

// String returns a human-readable representation of the kind.
func (k SlotKind) String() string {
	switch k {
	case SlotFree:
		return "Free"
	case SlotClaimed:
		return "Claimed"
	default:
		return "Unknown"
	}
}

// SlotInfo is a consistent snapshot of one slot, see [State.Slot].
type SlotInfo struct {
	Kind SlotKind
	// Cores has bit i set if core i holds the slot, only for SlotClaimed.
	Cores uint32
	// Pending is the pending bit of the slot.
	Pending bool
}

// Claim allocates the lowest numbered free slot to this core, storing the
// handle in ev. It fails with [ErrAlreadyClaimed] if ev is already set, and
// [ErrNoSlotsAvailable] if every slot is in use.
func (c *Core) Claim(ev *Event) error {
	if ev.Valid() {
		return ErrAlreadyClaimed
	}

	s := c.state
	slot := -1

	tok := s.lock.lock()
	for w := 0; w < numWords; w++ {
		var used uint64
		for i := range s.masks {
			used |= s.masks[i][w]
		}
		if free := ^used; free != 0 {
			b := bits.TrailingZeros64(free)
			s.masks[c.id][w] |= 1 << b
			slot = w*wordBits + b
			break
		}
	}
	s.lock.unlock(tok)

	if slot < 0 {
		s.logger.Warning().
			Int("core", c.id).
			Log("fiberevent: no event slots available")
		return ErrNoSlotsAvailable
	}

	*ev = eventAt(slot)

	s.logger.Debug().
		Int("core", c.id).
		Int("slot", slot).
		Log("fiberevent: claimed event")

	return nil
}

// Unclaim releases the slot held in ev, if this core holds it. The pending
// bit and the watchers of the slot are discarded, and ev is reset.
func (c *Core) Unclaim(ev *Event) {
	if !ev.Valid() {
		return
	}

	s := c.state
	w, bit := ev.word()

	tok := s.lock.lock()
	owned := s.masks[c.id][w]&bit != 0
	if owned {
		s.masks[c.id][w] &^= bit
		s.pending[w] &^= bit
	}
	s.lock.unlock(tok)

	if !owned {
		return
	}

	slot := ev.Slot()
	*ev = Event{}
	c.watchers[slot].reset()

	s.logger.Debug().
		Int("core", c.id).
		Int("slot", slot).
		Log("fiberevent: unclaimed event")
}

// Enabled reports whether ev is claimed by this core.
func (c *Core) Enabled(ev Event) bool {
	if !ev.Valid() {
		return false
	}
	s := c.state
	w, bit := ev.word()
	tok := s.lock.lock()
	ok := s.masks[c.id][w]&bit != 0
	s.lock.unlock(tok)
	return ok
}

// Enabled reports whether ev is claimed by any core.
func (s *State) Enabled(ev Event) bool {
	if !ev.Valid() {
		return false
	}
	w, bit := ev.word()
	tok := s.lock.lock()
	ok := s.claimedLocked(w, bit)
	s.lock.unlock(tok)
	return ok
}

// claimedLocked must be called with the lock held.
func (s *State) claimedLocked(w int, bit uint64) bool {
	for i := range s.masks {
		if s.masks[i][w]&bit != 0 {
			return true
		}
	}
	return false
}

// Slot returns a snapshot of slot i, which must be in [0, NumEvents).
func (s *State) Slot(i int) SlotInfo {
	if i < 0 || i >= NumEvents {
		panic("fiberevent: slot index out of range: " + strconv.Itoa(i))
	}
	w, bit := eventAt(i).word()

	var info SlotInfo
	tok := s.lock.lock()
	for c := range s.masks {
		if s.masks[c][w]&bit != 0 {
			info.Cores |= 1 << c
		}
	}
	info.Pending = s.pending[w]&bit != 0
	s.lock.unlock(tok)

	if info.Cores != 0 {
		info.Kind = SlotClaimed
	}
	return info
}

// Claimed returns the number of slots held by this core.
func (c *Core) Claimed() int {
	s := c.state
	var n int
	tok := s.lock.lock()
	for _, word := range s.masks[c.id] {
		n += bits.OnesCount64(word)
	}
	s.lock.unlock(tok)
	return n
}

// Pending returns the number of pending slots held by this core.
func (c *Core) Pending() int {
	s := c.state
	var n int
	tok := s.lock.lock()
	for w, word := range s.masks[c.id] {
		n += bits.OnesCount64(word & s.pending[w])
	}
	s.lock.unlock(tok)
	return n
}

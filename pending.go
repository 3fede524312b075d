package fiberevent

// SetPending marks ev pending and wakes the core that holds it. It is safe
// to call from any goroutine, never blocks beyond the lock, and is
// idempotent: signals before the next drain collapse into one. Unset
// handles, and slots no core holds, are ignored.
func (s *State) SetPending(ev Event) {
	if !ev.Valid() {
		return
	}
	w, bit := ev.word()

	var owners uint32
	tok := s.lock.lock()
	for i := range s.masks {
		if s.masks[i][w]&bit != 0 {
			owners |= 1 << i
		}
	}
	if owners != 0 {
		s.pending[w] |= bit
	}
	s.lock.unlock(tok)

	for i, c := range s.cores {
		if owners&(1<<i) != 0 {
			c.idle.signal()
		}
	}
}

// ClearPending clears the pending bit of ev. It is safe to call from any
// goroutine.
func (s *State) ClearPending(ev Event) {
	if !ev.Valid() {
		return
	}
	w, bit := ev.word()
	tok := s.lock.lock()
	s.pending[w] &^= bit
	s.lock.unlock(tok)
}

// drainAndMask returns the pending bits held by core, clearing exactly
// those. Bits of slots held by other cores are left untouched.
func (s *State) drainAndMask(core int) (active [numWords]uint64) {
	for w := range active {
		tok := s.lock.lock()
		active[w] = s.pending[w] & s.masks[core][w]
		s.pending[w] &^= active[w]
		s.lock.unlock(tok)
	}
	return active
}

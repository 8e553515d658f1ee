package room

import "time"

// Timers is the duel clock: one countdown per team. An expiry is posted as
// TimerExpired carrying the generation of the arm that produced it, so a
// fire that raced a Cancel or a later Arm can be told apart.
//
// Only the room strand calls into Timers.
type Timers struct {
	post     func(Event)
	timers   [2]*time.Timer
	gen      [2]uint64
	deadline [2]time.Time
}

func NewTimers(post func(Event)) *Timers {
	return &Timers{post: post}
}

// Arm replaces any running countdown for team.
func (t *Timers) Arm(team uint8, d time.Duration) uint64 {
	team &= 1
	t.stop(team)
	t.gen[team]++
	gen := t.gen[team]
	t.deadline[team] = time.Now().Add(d)
	t.timers[team] = time.AfterFunc(d, func() {
		t.post(TimerExpired{Team: team, Gen: gen})
	})
	return gen
}

// Cancel stops team's countdown. Calling it again is harmless.
func (t *Timers) Cancel(team uint8) {
	team &= 1
	t.stop(team)
	t.gen[team]++
	t.deadline[team] = time.Time{}
}

// Remaining is how long team's countdown has left, zero when not armed.
func (t *Timers) Remaining(team uint8) time.Duration {
	dl := t.deadline[team&1]
	if dl.IsZero() {
		return 0
	}
	return max(time.Until(dl), 0)
}

// Current reports whether gen is the live arm of team.
func (t *Timers) Current(team uint8, gen uint64) bool {
	return t.gen[team&1] == gen && !t.deadline[team&1].IsZero()
}

// Stop cancels both countdowns.
func (t *Timers) Stop() {
	t.Cancel(0)
	t.Cancel(1)
}

func (t *Timers) stop(team uint8) {
	if t.timers[team] != nil {
		t.timers[team].Stop()
		t.timers[team] = nil
	}
}

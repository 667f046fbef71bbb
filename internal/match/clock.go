package match

import "time"

// Clock tracks both side budgets and the instant the on-turn side's clock
// was armed. All accounting is lazy: nothing ticks, time is debited at the
// instant of the next operation from wall-clock elapsed. The off-turn
// side's budget never changes.
type Clock struct {
	WhiteMs int64 `json:"white_ms"`
	BlackMs int64 `json:"black_ms"`

	// TurnStartedAt is the instant the currently on-turn side's clock
	// started running. Zero until the match is RUNNING.
	TurnStartedAt time.Time `json:"turn_started_at"`
}

func newClock(initialMs int64) Clock {
	return Clock{WhiteMs: initialMs, BlackMs: initialMs}
}

// Arm starts the on-turn side's clock at now. Called on the
// SCHEDULED -> RUNNING transition and after every applied move.
func (c *Clock) Arm(now time.Time) {
	c.TurnStartedAt = now
}

// Remaining returns the stored budget for a side, without lazy elapsed.
func (c *Clock) Remaining(s Side) int64 {
	if s == SideWhite {
		return c.WhiteMs
	}
	return c.BlackMs
}

// Observed returns the budget for side s as seen at now while onTurn is to
// move: the on-turn side's stored budget minus wall-clock elapsed since its
// clock was armed, floored at zero. Pure; nothing is mutated.
func (c *Clock) Observed(s, onTurn Side, now time.Time) int64 {
	rem := c.Remaining(s)
	if s != onTurn || c.TurnStartedAt.IsZero() {
		return rem
	}
	rem -= now.Sub(c.TurnStartedAt).Milliseconds()
	if rem < 0 {
		return 0
	}
	return rem
}

// Expired reports whether the on-turn side's budget has fully elapsed at now.
func (c *Clock) Expired(onTurn Side, now time.Time) bool {
	return !c.TurnStartedAt.IsZero() && c.Observed(onTurn, onTurn, now) <= 0
}

// Debit subtracts elapsed wall-clock time from the on-turn side's budget,
// floored at zero, and re-arms the clock at now for the next side. Returns
// the side's remaining budget after the debit.
func (c *Clock) Debit(onTurn Side, now time.Time) int64 {
	rem := c.Observed(onTurn, onTurn, now)
	if onTurn == SideWhite {
		c.WhiteMs = rem
	} else {
		c.BlackMs = rem
	}
	c.TurnStartedAt = now
	return rem
}

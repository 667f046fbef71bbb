package match

import "time"

// NoShowPolicy resolves matches abandoned before they ever started. It is
// evaluated at the top of every operation; no scheduler exists, so the
// transition fires on the first request that arrives past the deadline.
type NoShowPolicy struct {
	// JoinWindow starts at match creation.
	JoinWindow time.Duration
	// Grace extends the window before the match is forfeited.
	Grace time.Duration
}

// Deadline is the instant a SCHEDULED match becomes forfeitable.
func (p NoShowPolicy) Deadline(createdAt time.Time) time.Time {
	return createdAt.Add(p.JoinWindow + p.Grace)
}

// Resolve converts m to a terminal NO_SHOW result when the deadline has
// passed and at least one participant never joined. The side that did join
// wins; when neither joined the match resolves as a draw. Side-effect-free
// when the condition is not met. Returns true when a transition applied.
func (p NoShowPolicy) Resolve(m *Match, now time.Time) bool {
	if m.Status != StatusScheduled {
		return false
	}
	if now.Before(p.Deadline(m.CreatedAt)) {
		return false
	}
	switch {
	case m.WhiteJoinedAt != nil && m.BlackJoinedAt == nil:
		m.finish(ResultWhiteWins, ReasonNoShow, now)
	case m.BlackJoinedAt != nil && m.WhiteJoinedAt == nil:
		m.finish(ResultBlackWins, ReasonNoShow, now)
	case m.WhiteJoinedAt == nil && m.BlackJoinedAt == nil:
		m.finish(ResultDraw, ReasonNoShow, now)
	default:
		// Both joined; the match is RUNNING or about to be. Not a no-show.
		return false
	}
	return true
}

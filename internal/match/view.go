package match

import (
	"time"

	"github.com/castlelane/matchcore/pkg/matchdto"
)

// project maps the aggregate to its externally visible snapshot. Callers
// run lazy resolution before projecting, so the view always reflects the
// post-transition state. Clock values are as observed at projection time.
func project(m *Match, now time.Time) *matchdto.StateView {
	v := &matchdto.StateView{
		MatchID:       m.ID,
		TournamentID:  m.TournamentID,
		Status:        string(m.Status),
		WhitePlayerID: m.WhiteID,
		BlackPlayerID: m.BlackID,
		Position:      m.FEN,
		MoveNumber:    m.MoveNumber,
		Turn:          string(m.Turn),
		ServerTimeUtc: now.UTC().Format(time.RFC3339Nano),
	}

	if m.Status == StatusRunning {
		v.WhiteTimeMsRemaining = m.Clock.Observed(SideWhite, m.Turn, now)
		v.BlackTimeMsRemaining = m.Clock.Observed(SideBlack, m.Turn, now)
	} else {
		// Frozen once terminal, untouched while SCHEDULED.
		v.WhiteTimeMsRemaining = m.Clock.Remaining(SideWhite)
		v.BlackTimeMsRemaining = m.Clock.Remaining(SideBlack)
	}

	if m.Status == StatusFinished {
		result := string(m.Result)
		reason := string(m.Reason)
		v.Result = &result
		v.ResultReason = &reason
	}

	if m.LastMove != nil {
		v.LastMove = &matchdto.LastMove{
			Notation:    m.LastMove.SAN,
			Origin:      m.LastMove.Origin,
			Destination: m.LastMove.Destination,
			Promotion:   m.LastMove.Promotion,
		}
	}
	return v
}

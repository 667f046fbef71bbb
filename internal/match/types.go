package match

import (
	"time"
)

// Side identifies a chess color as it appears on the wire.
type Side string

const (
	SideWhite Side = "WHITE"
	SideBlack Side = "BLACK"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// Status is the match lifecycle state. Transitions are monotonic:
// SCHEDULED -> RUNNING -> FINISHED, with SCHEDULED -> FINISHED allowed
// for no-show resolution. FINISHED is terminal.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusRunning   Status = "RUNNING"
	StatusFinished  Status = "FINISHED"
)

// Result is the terminal outcome of a match.
type Result string

const (
	ResultWhiteWins Result = "WHITE_WINS"
	ResultBlackWins Result = "BLACK_WINS"
	ResultDraw      Result = "DRAW"
)

// Reason explains how a terminal result came about.
type Reason string

const (
	ReasonCheckmate     Reason = "CHECKMATE"
	ReasonStalemate     Reason = "STALEMATE"
	ReasonDraw          Reason = "DRAW"
	ReasonDrawAgreement Reason = "DRAW_AGREEMENT"
	ReasonResignation   Reason = "RESIGNATION"
	ReasonTimeout       Reason = "TIMEOUT"
	ReasonNoShow        Reason = "NO_SHOW"
)

// MoveRecord captures the most recently applied move for display and audit.
type MoveRecord struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	SAN         string `json:"san"`
	Promotion   string `json:"promotion,omitempty"`
}

// Match is the aggregate root for one tournament game. It is mutated only
// while its arena entry lock is held; the engine swaps in a modified copy
// after a successful commit so readers never observe partial application.
type Match struct {
	ID           string `json:"id"`
	TournamentID string `json:"tournament_id"`

	WhiteID string `json:"white_id"`
	BlackID string `json:"black_id"`

	StartFEN   string   `json:"start_fen"`
	FEN        string   `json:"fen"`
	MovesUCI   []string `json:"moves_uci"`
	MovesSAN   []string `json:"moves_san"`
	MoveNumber int      `json:"move_number"`
	Turn       Side     `json:"turn"`

	Clock Clock `json:"clock"`

	WhiteJoinedAt *time.Time `json:"white_joined_at,omitempty"`
	BlackJoinedAt *time.Time `json:"black_joined_at,omitempty"`

	Status   Status      `json:"status"`
	Result   Result      `json:"result,omitempty"`
	Reason   Reason      `json:"reason,omitempty"`
	LastMove *MoveRecord `json:"last_move,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SideOf maps a player ID to a color, or "" for non-participants.
func (m *Match) SideOf(playerID string) Side {
	switch playerID {
	case m.WhiteID:
		return SideWhite
	case m.BlackID:
		return SideBlack
	default:
		return ""
	}
}

// PlayerOf is the inverse of SideOf.
func (m *Match) PlayerOf(s Side) string {
	if s == SideWhite {
		return m.WhiteID
	}
	return m.BlackID
}

func (m *Match) joinedAt(s Side) *time.Time {
	if s == SideWhite {
		return m.WhiteJoinedAt
	}
	return m.BlackJoinedAt
}

func (m *Match) bothJoined() bool {
	return m.WhiteJoinedAt != nil && m.BlackJoinedAt != nil
}

// finish records the terminal outcome. Clocks and position freeze at their
// current values; callers must not mutate the match afterwards.
func (m *Match) finish(result Result, reason Reason, now time.Time) {
	m.Status = StatusFinished
	m.Result = result
	m.Reason = reason
	m.UpdatedAt = now
}

// winnerResult maps a side to the result favoring it.
func winnerResult(s Side) Result {
	if s == SideWhite {
		return ResultWhiteWins
	}
	return ResultBlackWins
}

// clone returns a deep copy safe to mutate without touching the original.
func (m *Match) clone() *Match {
	cp := *m
	cp.MovesUCI = append([]string(nil), m.MovesUCI...)
	cp.MovesSAN = append([]string(nil), m.MovesSAN...)
	if m.WhiteJoinedAt != nil {
		t := *m.WhiteJoinedAt
		cp.WhiteJoinedAt = &t
	}
	if m.BlackJoinedAt != nil {
		t := *m.BlackJoinedAt
		cp.BlackJoinedAt = &t
	}
	if m.LastMove != nil {
		lm := *m.LastMove
		cp.LastMove = &lm
	}
	return &cp
}

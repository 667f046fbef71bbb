package matchdto

// LastMove describes the most recently applied move of a match.
type LastMove struct {
	Notation    string `json:"notation"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Promotion   string `json:"promotion,omitempty"`
}

// StateView is the externally visible snapshot of a match. Clients poll it
// and extrapolate the running clock locally from ServerTimeUtc.
type StateView struct {
	MatchID              string    `json:"matchId"`
	TournamentID         string    `json:"tournamentId"`
	Status               string    `json:"status"`
	Result               *string   `json:"result"`
	ResultReason         *string   `json:"resultReason"`
	WhitePlayerID        string    `json:"whitePlayerId"`
	BlackPlayerID        string    `json:"blackPlayerId"`
	Position             string    `json:"position"`
	MoveNumber           int       `json:"moveNumber"`
	Turn                 string    `json:"turn"`
	WhiteTimeMsRemaining int64     `json:"whiteTimeMsRemaining"`
	BlackTimeMsRemaining int64     `json:"blackTimeMsRemaining"`
	LastMove             *LastMove `json:"lastMove"`
	ServerTimeUtc        string    `json:"serverTimeUtc"`
}

// JoinView wraps a StateView with the idempotent re-join signal.
type JoinView struct {
	StateView
	Rejoined bool `json:"rejoined"`
}

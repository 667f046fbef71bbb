package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository archives terminal match results to Postgres. Archival is
// best-effort and never participates in the state transition itself.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts the terminal result of a match, including a PGN built
// from the SAN history. Non-terminal matches are skipped.
func (r *Repository) SaveResult(ctx context.Context, m *Match) error {
	if r == nil || r.db == nil || m == nil {
		return nil
	}
	if m.Status != StatusFinished {
		return nil
	}

	pgnResult := pgnResultToken(m.Result)
	pgn := buildPGN(m, pgnResult)

	movesUCIRaw, _ := json.Marshal(m.MovesUCI)
	movesSANRaw, _ := json.Marshal(m.MovesSAN)
	duration := m.UpdatedAt.Sub(m.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO tournament_matches (
	    match_id, tournament_id, white_id, black_id,
	    result, result_reason, move_count,
	    moves_uci, moves_san, pgn,
	    white_clock_ms, black_clock_ms,
	    created_at, finished_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	  ) ON CONFLICT (match_id) DO UPDATE SET
	    tournament_id=EXCLUDED.tournament_id,
	    white_id=EXCLUDED.white_id,
	    black_id=EXCLUDED.black_id,
	    result=EXCLUDED.result,
	    result_reason=EXCLUDED.result_reason,
	    move_count=EXCLUDED.move_count,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    white_clock_ms=EXCLUDED.white_clock_ms,
	    black_clock_ms=EXCLUDED.black_clock_ms,
	    created_at=EXCLUDED.created_at,
	    finished_at=EXCLUDED.finished_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.TournamentID, m.WhiteID, m.BlackID,
		string(m.Result), string(m.Reason), m.MoveNumber,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		m.Clock.WhiteMs, m.Clock.BlackMs,
		m.CreatedAt, m.UpdatedAt, duration,
	)
	return err
}

func pgnResultToken(result Result) string {
	switch result {
	case ResultWhiteWins:
		return "1-0"
	case ResultBlackWins:
		return "0-1"
	case ResultDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(m *Match, pgnResult string) string {
	var b strings.Builder
	date := m.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Tournament match\"]\n")
	if strings.TrimSpace(m.TournamentID) != "" {
		b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(m.TournamentID)))
	}
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(m.WhiteID)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(m.BlackID)))
	if m.Reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(string(m.Reason)))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(m.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(m.MovesSAN[i])))
		if i+1 < len(m.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(m.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

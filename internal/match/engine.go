package match

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlelane/matchcore/internal/obslog"
	"github.com/castlelane/matchcore/internal/rules"
	"github.com/castlelane/matchcore/pkg/matchdto"
)

// Config carries the tournament-level constants injected at construction so
// tests can use arbitrarily short windows.
type Config struct {
	JoinWindow     time.Duration
	NoShowGrace    time.Duration
	InitialClockMs int64
}

// entry pairs a match with its own lock. Operations on different matches
// never contend; operations on the same match serialize, reads included,
// because any request can trigger a lazy terminal transition.
type entry struct {
	mu sync.Mutex
	m  *Match
}

// Engine owns the arena of match aggregates and drives every state
// transition. There is no background scheduler: deadlines are evaluated
// lazily at the top of each operation.
type Engine struct {
	mu      sync.RWMutex
	matches map[string]*entry

	oracle rules.Oracle
	policy NoShowPolicy
	cfg    Config

	store *Store
	repo  *Repository

	now func() time.Time
}

type Option func(*Engine)

// WithStore attaches a Redis snapshot store. Mutations are written through
// before they become visible, and unknown match IDs are hydrated from it.
func WithStore(s *Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRepository attaches a database repository for terminal results.
func WithRepository(r *Repository) Option {
	return func(e *Engine) { e.repo = r }
}

// WithNow overrides the engine's wall clock. Test hook.
func WithNow(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

func New(oracle rules.Oracle, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		matches: make(map[string]*entry),
		oracle:  oracle,
		policy:  NoShowPolicy{JoinWindow: cfg.JoinWindow, Grace: cfg.NoShowGrace},
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateParams is supplied by the tournament collaborator when it assigns
// two players to a match slot.
type CreateParams struct {
	MatchID       string
	TournamentID  string
	WhitePlayerID string
	BlackPlayerID string
	// StartFEN defaults to the standard initial position.
	StartFEN string
	// InitialClockMs overrides the configured default when positive.
	InitialClockMs int64
}

// Create registers a new match in SCHEDULED state.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*matchdto.StateView, error) {
	white := strings.TrimSpace(p.WhitePlayerID)
	black := strings.TrimSpace(p.BlackPlayerID)
	if white == "" || black == "" || white == black {
		return nil, newError(KindBadRequest, "two distinct participants are required")
	}

	id := strings.TrimSpace(p.MatchID)
	if id == "" {
		id = uuid.NewString()
	}

	fen := strings.TrimSpace(p.StartFEN)
	if fen == "" {
		fen = rules.StartingFEN
	}

	clockMs := e.cfg.InitialClockMs
	if p.InitialClockMs > 0 {
		clockMs = p.InitialClockMs
	}

	now := e.now()
	m := &Match{
		ID:           id,
		TournamentID: strings.TrimSpace(p.TournamentID),
		WhiteID:      white,
		BlackID:      black,
		StartFEN:     fen,
		FEN:          fen,
		MovesUCI:     []string{},
		MovesSAN:     []string{},
		Turn:         sideToMove(fen),
		Clock:        newClock(clockMs),
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ent := &entry{m: m}
	e.mu.Lock()
	if _, exists := e.matches[id]; exists {
		e.mu.Unlock()
		return nil, newError(KindBadRequest, "match id is already in use")
	}
	e.matches[id] = ent
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.Save(ctx, m); err != nil {
			e.mu.Lock()
			delete(e.matches, id)
			e.mu.Unlock()
			return nil, internalError("snapshot write failed", err)
		}
	}

	obslog.L().Info("match_create",
		zap.String("match_id", m.ID),
		zap.String("tournament_id", m.TournamentID),
		zap.String("white_id", m.WhiteID),
		zap.String("black_id", m.BlackID),
		zap.Int64("clock_ms", clockMs),
	)
	return project(m, now), nil
}

// Join records a participant's arrival. Re-joining is idempotent and
// reported through the Rejoined flag rather than an error. When both
// participants have joined the match transitions to RUNNING and white's
// clock starts.
func (e *Engine) Join(ctx context.Context, matchID, playerID string) (*matchdto.JoinView, error) {
	var rejoined bool
	view, err := e.mutate(ctx, matchID, func(m *Match, now time.Time) (bool, error) {
		if m.Status == StatusFinished {
			return false, newError(KindMatchNotActive, "match is already finished")
		}
		side := m.SideOf(strings.TrimSpace(playerID))
		if side == "" {
			return false, newError(KindNotParticipant, "player is not assigned to this match")
		}
		if m.joinedAt(side) != nil {
			rejoined = true
			return false, nil
		}
		t := now
		if side == SideWhite {
			m.WhiteJoinedAt = &t
		} else {
			m.BlackJoinedAt = &t
		}
		m.UpdatedAt = now
		if m.Status == StatusScheduled && m.bothJoined() {
			m.Status = StatusRunning
			m.Clock.Arm(now)
		}
		obslog.L().Info("match_join",
			zap.String("match_id", m.ID),
			zap.String("player_id", strings.TrimSpace(playerID)),
			zap.String("side", string(side)),
			zap.String("status", string(m.Status)),
		)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &matchdto.JoinView{StateView: *view, Rejoined: rejoined}, nil
}

// Move validates and applies one move for the given player. The mover's
// clock is debited before the position commits; a debit that exhausts the
// budget ends the match with TIMEOUT and the move is not applied.
func (e *Engine) Move(ctx context.Context, matchID, playerID, origin, destination, promotion string) (*matchdto.StateView, error) {
	return e.mutate(ctx, matchID, func(m *Match, now time.Time) (bool, error) {
		if m.Status != StatusRunning {
			return false, newError(KindMatchNotActive, "match is not running")
		}
		side := m.SideOf(strings.TrimSpace(playerID))
		if side == "" {
			return false, newError(KindNotParticipant, "player is not assigned to this match")
		}
		if side != m.Turn {
			return false, newError(KindNotYourTurn, "it is the opponent's turn")
		}

		verdict, err := e.oracle.Apply(m.StartFEN, m.MovesUCI, rules.Move{
			Origin:      origin,
			Destination: destination,
			Promotion:   promotion,
		})
		if err != nil {
			return false, internalError("rules oracle failed", err)
		}
		if !verdict.Legal {
			return false, newError(KindIllegalMove, "move is not legal in the current position")
		}

		if rem := m.Clock.Debit(side, now); rem <= 0 {
			// The budget ran out in the same instant; the move cannot be
			// completed after the flag fell.
			m.finish(winnerResult(side.Opponent()), ReasonTimeout, now)
			return true, nil
		}

		m.FEN = verdict.NextFEN
		m.MovesUCI = append(m.MovesUCI, verdict.UCI)
		m.MovesSAN = append(m.MovesSAN, verdict.SAN)
		m.MoveNumber++
		m.Turn = side.Opponent()
		m.LastMove = &MoveRecord{
			Origin:      strings.ToLower(strings.TrimSpace(origin)),
			Destination: strings.ToLower(strings.TrimSpace(destination)),
			SAN:         verdict.SAN,
			Promotion:   strings.ToUpper(strings.TrimSpace(promotion)),
		}
		m.UpdatedAt = now

		if t := verdict.Terminal; t != nil {
			switch t.Kind {
			case rules.TerminalCheckmate:
				winner := SideWhite
				if t.Winner == rules.WinnerBlack {
					winner = SideBlack
				}
				m.finish(winnerResult(winner), ReasonCheckmate, now)
			case rules.TerminalStalemate:
				m.finish(ResultDraw, ReasonStalemate, now)
			default:
				m.finish(ResultDraw, ReasonDraw, now)
			}
		}

		obslog.L().Info("match_move",
			zap.String("match_id", m.ID),
			zap.String("player_id", strings.TrimSpace(playerID)),
			zap.String("uci", verdict.UCI),
			zap.String("san", verdict.SAN),
			zap.Int("move_number", m.MoveNumber),
			zap.String("status", string(m.Status)),
		)
		return true, nil
	})
}

// Resign ends a running match in the opponent's favor.
func (e *Engine) Resign(ctx context.Context, matchID, playerID string) (*matchdto.StateView, error) {
	return e.mutate(ctx, matchID, func(m *Match, now time.Time) (bool, error) {
		if m.Status != StatusRunning {
			return false, newError(KindMatchNotActive, "match is not running")
		}
		side := m.SideOf(strings.TrimSpace(playerID))
		if side == "" {
			return false, newError(KindNotParticipant, "player is not assigned to this match")
		}
		m.finish(winnerResult(side.Opponent()), ReasonResignation, now)
		obslog.L().Info("match_resign",
			zap.String("match_id", m.ID),
			zap.String("player_id", strings.TrimSpace(playerID)),
			zap.String("result", string(m.Result)),
		)
		return true, nil
	})
}

// State returns the current view. Reads run the same lazy resolution as
// mutations, so an expired deadline is observable on the next poll.
func (e *Engine) State(ctx context.Context, matchID string) (*matchdto.StateView, error) {
	return e.mutate(ctx, matchID, func(m *Match, now time.Time) (bool, error) {
		return false, nil
	})
}

// mutate is the single entry path for all per-match operations. It locks
// the match, runs lazy resolution, applies op to a working copy, and swaps
// the copy in only after the snapshot store accepted it, so a failed write
// leaves the aggregate exactly as it was.
func (e *Engine) mutate(ctx context.Context, matchID string, op func(m *Match, now time.Time) (bool, error)) (*matchdto.StateView, error) {
	ent, err := e.lookup(ctx, matchID)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	now := e.now()
	work := ent.m.clone()

	resolved := e.resolve(work, now)
	mutated, opErr := op(work, now)

	if mutated || resolved {
		wasTerminal := ent.m.Status == StatusFinished
		if e.store != nil {
			if serr := e.store.Save(ctx, work); serr != nil {
				// The in-memory aggregate is untouched; a lazy transition
				// that failed to persist fires again on the next request.
				return nil, internalError("snapshot write failed", serr)
			}
		}
		ent.m = work
		if !wasTerminal && work.Status == StatusFinished {
			e.onTerminal(ctx, work)
		}
	}

	if opErr != nil {
		return nil, opErr
	}
	return project(ent.m, now), nil
}

// resolve applies the lazy time-based transitions: no-show forfeiture and
// flag fall for the side on turn. Idempotent and side-effect-free when no
// deadline has passed.
func (e *Engine) resolve(m *Match, now time.Time) bool {
	if e.policy.Resolve(m, now) {
		return true
	}
	if m.Status == StatusRunning && m.Clock.Expired(m.Turn, now) {
		loser := m.Turn
		m.Clock.Debit(loser, now)
		m.finish(winnerResult(loser.Opponent()), ReasonTimeout, now)
		return true
	}
	return false
}

// onTerminal handles the exactly-once side effects of a terminal
// transition: structured log plus best-effort result archival.
func (e *Engine) onTerminal(ctx context.Context, m *Match) {
	obslog.L().Info("match_finished",
		zap.String("match_id", m.ID),
		zap.String("tournament_id", m.TournamentID),
		zap.String("result", string(m.Result)),
		zap.String("reason", string(m.Reason)),
		zap.Int("move_number", m.MoveNumber),
	)
	if e.repo == nil {
		return
	}
	if err := e.repo.SaveResult(ctx, m); err != nil {
		obslog.L().Error("match_result_persist_error",
			zap.String("match_id", m.ID),
			zap.String("result", string(m.Result)),
			zap.Error(err),
		)
	}
}

// lookup finds the match entry, hydrating from the snapshot store on miss.
func (e *Engine) lookup(ctx context.Context, matchID string) (*entry, error) {
	id := strings.TrimSpace(matchID)
	e.mu.RLock()
	ent, ok := e.matches[id]
	e.mu.RUnlock()
	if ok {
		return ent, nil
	}
	if e.store == nil {
		return nil, newError(KindMatchNotFound, "no such match")
	}
	m, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, internalError("snapshot read failed", err)
	}
	if m == nil {
		return nil, newError(KindMatchNotFound, "no such match")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.matches[id]; ok {
		return existing, nil
	}
	ent = &entry{m: m}
	e.matches[id] = ent
	return ent, nil
}

// sideToMove reads the active color from a FEN string. Defaults to white.
func sideToMove(fen string) Side {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return SideBlack
	}
	return SideWhite
}

package match

import (
	"context"
	"testing"
	"time"

	"github.com/castlelane/matchcore/internal/rules"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	fc := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append(opts, WithNow(fc.Now))
	return New(rules.NewOracle(), cfg, opts...), fc
}

func defaultConfig() Config {
	return Config{
		JoinWindow:     30 * time.Second,
		NoShowGrace:    60 * time.Second,
		InitialClockMs: 600000,
	}
}

func createMatch(t *testing.T, e *Engine, fen string) string {
	t.Helper()
	view, err := e.Create(context.Background(), CreateParams{
		MatchID:       "m1",
		TournamentID:  "t1",
		WhitePlayerID: "alice",
		BlackPlayerID: "bob",
		StartFEN:      fen,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.Status != string(StatusScheduled) {
		t.Fatalf("new match status = %s, want SCHEDULED", view.Status)
	}
	return view.MatchID
}

func joinBoth(t *testing.T, e *Engine, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.Join(ctx, id, "alice"); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	jv, err := e.Join(ctx, id, "bob")
	if err != nil {
		t.Fatalf("Join bob: %v", err)
	}
	if jv.Status != string(StatusRunning) {
		t.Fatalf("status after both joined = %s, want RUNNING", jv.Status)
	}
}

func TestJoinTransitionsToRunning(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")

	jv, err := e.Join(ctx, id, "alice")
	if err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if jv.Status != string(StatusScheduled) || jv.Rejoined {
		t.Fatalf("after first join: status=%s rejoined=%v", jv.Status, jv.Rejoined)
	}

	jv, err = e.Join(ctx, id, "bob")
	if err != nil {
		t.Fatalf("Join bob: %v", err)
	}
	if jv.Status != string(StatusRunning) {
		t.Fatalf("after both joined: status=%s, want RUNNING", jv.Status)
	}
	if jv.Turn != string(SideWhite) {
		t.Fatalf("turn = %s, want WHITE", jv.Turn)
	}
}

func TestJoinIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")

	first, err := e.Join(ctx, id, "alice")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	again, err := e.Join(ctx, id, "alice")
	if err != nil {
		t.Fatalf("re-Join returned error: %v", err)
	}
	if !again.Rejoined {
		t.Fatalf("expected rejoined flag on second join")
	}
	if again.Status != first.Status || again.MoveNumber != first.MoveNumber {
		t.Fatalf("re-join changed state: %s/%d vs %s/%d", again.Status, again.MoveNumber, first.Status, first.MoveNumber)
	}
}

func TestJoinByStranger(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	id := createMatch(t, e, "")
	_, err := e.Join(context.Background(), id, "mallory")
	if KindOf(err) != KindNotParticipant {
		t.Fatalf("err = %v, want NOT_PARTICIPANT", err)
	}
}

func TestUnknownMatch(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	_, err := e.State(context.Background(), "nope")
	if KindOf(err) != KindMatchNotFound {
		t.Fatalf("err = %v, want MATCH_NOT_FOUND", err)
	}
}

func TestNoShowResolution(t *testing.T) {
	e, fc := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")

	if _, err := e.Join(ctx, id, "alice"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	// One second before the 30s window + 60s grace: still waiting.
	fc.Advance(89 * time.Second)
	view, err := e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.Status != string(StatusScheduled) {
		t.Fatalf("status before deadline = %s, want SCHEDULED", view.Status)
	}

	// t = 91s: the next read resolves the forfeit.
	fc.Advance(2 * time.Second)
	view, err = e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.Status != string(StatusFinished) {
		t.Fatalf("status = %s, want FINISHED", view.Status)
	}
	if view.Result == nil || *view.Result != string(ResultWhiteWins) {
		t.Fatalf("result = %v, want WHITE_WINS", view.Result)
	}
	if view.ResultReason == nil || *view.ResultReason != string(ReasonNoShow) {
		t.Fatalf("reason = %v, want NO_SHOW", view.ResultReason)
	}
}

func TestNoShowNeitherJoined(t *testing.T) {
	e, fc := newTestEngine(t, defaultConfig())
	id := createMatch(t, e, "")

	fc.Advance(91 * time.Second)
	view, err := e.State(context.Background(), id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.Result == nil || *view.Result != string(ResultDraw) {
		t.Fatalf("result = %v, want DRAW when neither joined", view.Result)
	}
	if view.ResultReason == nil || *view.ResultReason != string(ReasonNoShow) {
		t.Fatalf("reason = %v, want NO_SHOW", view.ResultReason)
	}
}

func TestJoinAfterNoShowFails(t *testing.T) {
	e, fc := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")

	if _, err := e.Join(ctx, id, "alice"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	fc.Advance(2 * time.Minute)

	// The late join itself triggers the lazy resolution, then fails.
	_, err := e.Join(ctx, id, "bob")
	if KindOf(err) != KindMatchNotActive {
		t.Fatalf("late join err = %v, want MATCH_NOT_ACTIVE", err)
	}
	view, err := e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.Status != string(StatusFinished) || *view.Result != string(ResultWhiteWins) {
		t.Fatalf("late join reactivated the match: %s %v", view.Status, view.Result)
	}
}

func TestMoveDebitsClockAndFlipsTurn(t *testing.T) {
	e, fc := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	fc.Advance(5 * time.Second)
	view, err := e.Move(ctx, id, "alice", "e2", "e4", "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if view.WhiteTimeMsRemaining != 595000 {
		t.Fatalf("white clock = %d, want 595000", view.WhiteTimeMsRemaining)
	}
	if view.BlackTimeMsRemaining != 600000 {
		t.Fatalf("black clock = %d, want untouched 600000", view.BlackTimeMsRemaining)
	}
	if view.Turn != string(SideBlack) {
		t.Fatalf("turn = %s, want BLACK", view.Turn)
	}
	if view.MoveNumber != 1 {
		t.Fatalf("moveNumber = %d, want 1", view.MoveNumber)
	}
	if view.LastMove == nil || view.LastMove.Notation != "e4" || view.LastMove.Origin != "e2" {
		t.Fatalf("lastMove = %+v", view.LastMove)
	}
}

func TestMoveTurnAlternation(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	moves := []struct {
		player       string
		origin, dest string
	}{
		{"alice", "e2", "e4"},
		{"bob", "e7", "e5"},
		{"alice", "g1", "f3"},
		{"bob", "b8", "c6"},
	}
	for k, mv := range moves {
		view, err := e.Move(ctx, id, mv.player, mv.origin, mv.dest, "")
		if err != nil {
			t.Fatalf("move %d: %v", k+1, err)
		}
		if view.MoveNumber != k+1 {
			t.Fatalf("moveNumber after %d moves = %d", k+1, view.MoveNumber)
		}
		wantTurn := SideWhite
		if (k+1)%2 == 1 {
			wantTurn = SideBlack
		}
		if view.Turn != string(wantTurn) {
			t.Fatalf("turn after %d moves = %s, want %s", k+1, view.Turn, wantTurn)
		}
	}
}

func TestMoveRejectionsLeaveStateUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	before, err := e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}

	// Black out of turn.
	if _, err := e.Move(ctx, id, "bob", "e7", "e5", ""); KindOf(err) != KindNotYourTurn {
		t.Fatalf("out-of-turn err = %v, want NOT_YOUR_TURN", err)
	}
	// A pawn cannot reach e5 from e2 in one move.
	if _, err := e.Move(ctx, id, "alice", "e2", "e5", ""); KindOf(err) != KindIllegalMove {
		t.Fatalf("illegal move err = %v, want ILLEGAL_MOVE", err)
	}
	// Stranger.
	if _, err := e.Move(ctx, id, "mallory", "e2", "e4", ""); KindOf(err) != KindNotParticipant {
		t.Fatalf("stranger err = %v, want NOT_PARTICIPANT", err)
	}

	after, err := e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if after.Position != before.Position || after.MoveNumber != before.MoveNumber || after.Turn != before.Turn {
		t.Fatalf("rejected moves changed state: %+v vs %+v", after, before)
	}
	if after.WhiteTimeMsRemaining != before.WhiteTimeMsRemaining || after.BlackTimeMsRemaining != before.BlackTimeMsRemaining {
		t.Fatalf("rejected moves changed clocks")
	}
}

func TestResign(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	view, err := e.Resign(ctx, id, "bob")
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if *view.Result != string(ResultWhiteWins) || *view.ResultReason != string(ReasonResignation) {
		t.Fatalf("result = %v/%v", view.Result, view.ResultReason)
	}

	if _, err := e.Move(ctx, id, "alice", "e2", "e4", ""); KindOf(err) != KindMatchNotActive {
		t.Fatalf("move after resign err = %v, want MATCH_NOT_ACTIVE", err)
	}
	if _, err := e.Resign(ctx, id, "alice"); KindOf(err) != KindMatchNotActive {
		t.Fatalf("second resign err = %v, want MATCH_NOT_ACTIVE", err)
	}
}

func TestPromotion(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "8/P3k3/8/8/8/8/8/4K3 w - - 0 1")
	joinBoth(t, e, id)

	// Omitted promotion piece is an illegal move.
	if _, err := e.Move(ctx, id, "alice", "a7", "a8", ""); KindOf(err) != KindIllegalMove {
		t.Fatalf("missing promotion err = %v, want ILLEGAL_MOVE", err)
	}

	view, err := e.Move(ctx, id, "alice", "a7", "a8", "Q")
	if err != nil {
		t.Fatalf("promotion move: %v", err)
	}
	if view.LastMove == nil || view.LastMove.Promotion != "Q" {
		t.Fatalf("lastMove = %+v, want promotion Q", view.LastMove)
	}
	if want := "Q7/"; len(view.Position) < len(want) || view.Position[:len(want)] != want {
		t.Fatalf("position = %q, want queen on a8", view.Position)
	}
}

func TestCheckmateFinishesMatch(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	// Fool's mate.
	seq := []struct {
		player             string
		origin, dest, prom string
	}{
		{"alice", "f2", "f3", ""},
		{"bob", "e7", "e5", ""},
		{"alice", "g2", "g4", ""},
		{"bob", "d8", "h4", ""},
	}
	for _, mv := range seq {
		view, err := e.Move(ctx, id, mv.player, mv.origin, mv.dest, mv.prom)
		if err != nil {
			t.Fatalf("move %s%s: %v", mv.origin, mv.dest, err)
		}
		if mv.dest == "h4" {
			if view.Status != string(StatusFinished) {
				t.Fatalf("status after mate = %s", view.Status)
			}
			if *view.Result != string(ResultBlackWins) || *view.ResultReason != string(ReasonCheckmate) {
				t.Fatalf("result = %v/%v, want BLACK_WINS/CHECKMATE", view.Result, view.ResultReason)
			}
		}
	}

	if _, err := e.Join(ctx, id, "alice"); KindOf(err) != KindMatchNotActive {
		t.Fatalf("join after mate err = %v, want MATCH_NOT_ACTIVE", err)
	}
}

func TestStalemateFinishesAsDraw(t *testing.T) {
	e, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "k7/8/1K6/2Q5/8/8/8/8 w - - 0 1")
	joinBoth(t, e, id)

	view, err := e.Move(ctx, id, "alice", "c5", "c7", "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if view.Status != string(StatusFinished) {
		t.Fatalf("status = %s, want FINISHED", view.Status)
	}
	if *view.Result != string(ResultDraw) || *view.ResultReason != string(ReasonStalemate) {
		t.Fatalf("result = %v/%v, want DRAW/STALEMATE", view.Result, view.ResultReason)
	}
}

func TestFlagFallResolvesOnRead(t *testing.T) {
	cfg := defaultConfig()
	cfg.InitialClockMs = 10000
	e, fc := newTestEngine(t, cfg)
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	fc.Advance(11 * time.Second)
	view, err := e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.Status != string(StatusFinished) {
		t.Fatalf("status = %s, want FINISHED after flag fall", view.Status)
	}
	if *view.Result != string(ResultBlackWins) || *view.ResultReason != string(ReasonTimeout) {
		t.Fatalf("result = %v/%v, want BLACK_WINS/TIMEOUT", view.Result, view.ResultReason)
	}
	if view.WhiteTimeMsRemaining != 0 {
		t.Fatalf("white clock = %d, want 0", view.WhiteTimeMsRemaining)
	}
	if view.BlackTimeMsRemaining != 10000 {
		t.Fatalf("black clock = %d, want frozen 10000", view.BlackTimeMsRemaining)
	}
}

func TestMoveAfterFlagFall(t *testing.T) {
	cfg := defaultConfig()
	cfg.InitialClockMs = 10000
	e, fc := newTestEngine(t, cfg)
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	fc.Advance(10 * time.Second)
	_, err := e.Move(ctx, id, "alice", "e2", "e4", "")
	if KindOf(err) != KindMatchNotActive {
		t.Fatalf("move at exhausted clock err = %v, want MATCH_NOT_ACTIVE", err)
	}
	view, err := e.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.MoveNumber != 0 {
		t.Fatalf("move was applied after the flag fell")
	}
	if *view.ResultReason != string(ReasonTimeout) {
		t.Fatalf("reason = %v, want TIMEOUT", view.ResultReason)
	}
}

func TestObservedClockDecreasesOnPolls(t *testing.T) {
	e, fc := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	id := createMatch(t, e, "")
	joinBoth(t, e, id)

	v1, _ := e.State(ctx, id)
	fc.Advance(3 * time.Second)
	v2, _ := e.State(ctx, id)
	if v2.WhiteTimeMsRemaining >= v1.WhiteTimeMsRemaining {
		t.Fatalf("on-turn clock did not decrease: %d -> %d", v1.WhiteTimeMsRemaining, v2.WhiteTimeMsRemaining)
	}
	if v2.BlackTimeMsRemaining != v1.BlackTimeMsRemaining {
		t.Fatalf("off-turn clock changed: %d -> %d", v1.BlackTimeMsRemaining, v2.BlackTimeMsRemaining)
	}
}

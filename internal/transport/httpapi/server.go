package httpapi

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/castlelane/matchcore/internal/match"
	"github.com/castlelane/matchcore/internal/msgcat"
	"github.com/castlelane/matchcore/internal/obslog"
	"github.com/castlelane/matchcore/pkg/matchdto"
)

// Server is the thin JSON surface over the match engine. Routing is a
// hand-rolled path dispatch; the contract is small enough that a router
// dependency buys nothing.
type Server struct {
	engine *match.Engine
	cat    *msgcat.Catalog
	srv    *fasthttp.Server
}

func New(engine *match.Engine, cat *msgcat.Catalog) *Server {
	s := &Server{engine: engine, cat: cat}
	s.srv = &fasthttp.Server{
		Handler: s.handle,
		Name:    "matchd",
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() fasthttp.RequestHandler { return s.handle }

type createRequest struct {
	MatchID        string `json:"matchId"`
	TournamentID   string `json:"tournamentId"`
	WhitePlayerID  string `json:"whitePlayerId"`
	BlackPlayerID  string `json:"blackPlayerId"`
	Position       string `json:"position"`
	InitialClockMs int64  `json:"initialClockMs"`
}

type playerRequest struct {
	PlayerID string `json:"playerId"`
}

type moveRequest struct {
	PlayerID    string `json:"playerId"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Promotion   string `json:"promotion"`
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	if path == "/v1/matches" || path == "/v1/matches/" {
		if method != fasthttp.MethodPost {
			s.writeError(ctx, "", newBadRoute())
			return
		}
		s.handleCreate(ctx)
		return
	}

	rest, ok := strings.CutPrefix(path, "/v1/matches/")
	if !ok || rest == "" {
		s.writeError(ctx, "", newBadRoute())
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	switch {
	case action == "" && method == fasthttp.MethodGet:
		s.handleState(ctx, id)
	case action == "join" && method == fasthttp.MethodPost:
		s.handleJoin(ctx, id)
	case action == "move" && method == fasthttp.MethodPost:
		s.handleMove(ctx, id)
	case action == "resign" && method == fasthttp.MethodPost:
		s.handleResign(ctx, id)
	default:
		s.writeError(ctx, id, newBadRoute())
	}
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req createRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeBadRequest(ctx)
		return
	}
	view, err := s.engine.Create(ctx, match.CreateParams{
		MatchID:        req.MatchID,
		TournamentID:   req.TournamentID,
		WhitePlayerID:  req.WhitePlayerID,
		BlackPlayerID:  req.BlackPlayerID,
		StartFEN:       req.Position,
		InitialClockMs: req.InitialClockMs,
	})
	if err != nil {
		s.writeError(ctx, req.MatchID, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusCreated, view)
}

func (s *Server) handleJoin(ctx *fasthttp.RequestCtx, matchID string) {
	var req playerRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeBadRequest(ctx)
		return
	}
	view, err := s.engine.Join(ctx, matchID, req.PlayerID)
	if err != nil {
		s.writeError(ctx, matchID, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, view)
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, matchID string) {
	var req moveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeBadRequest(ctx)
		return
	}
	view, err := s.engine.Move(ctx, matchID, req.PlayerID, req.Origin, req.Destination, req.Promotion)
	if err != nil {
		s.writeError(ctx, matchID, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, view)
}

func (s *Server) handleResign(ctx *fasthttp.RequestCtx, matchID string) {
	var req playerRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeBadRequest(ctx)
		return
	}
	view, err := s.engine.Resign(ctx, matchID, req.PlayerID)
	if err != nil {
		s.writeError(ctx, matchID, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, view)
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx, matchID string) {
	view, err := s.engine.State(ctx, matchID)
	if err != nil {
		s.writeError(ctx, matchID, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, view)
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(body)
}

func (s *Server) writeBadRequest(ctx *fasthttp.RequestCtx) {
	msg := s.cat.RenderOr("error.bad_request", "request body could not be parsed", nil)
	s.writeJSON(ctx, fasthttp.StatusBadRequest, matchdto.ErrorEnvelope{
		Error: matchdto.APIError{Code: "BAD_REQUEST", Message: msg},
	})
}

// badRoute marks unknown paths/methods; mapped to 404 below.
type badRoute struct{}

func newBadRoute() error       { return badRoute{} }
func (badRoute) Error() string { return "no such route" }

func (s *Server) writeError(ctx *fasthttp.RequestCtx, matchID string, err error) {
	if _, ok := err.(badRoute); ok {
		s.writeJSON(ctx, fasthttp.StatusNotFound, matchdto.ErrorEnvelope{
			Error: matchdto.APIError{Code: "NOT_FOUND", Message: "no such route"},
		})
		return
	}

	kind := match.KindOf(err)
	status := fasthttp.StatusInternalServerError
	key := "error.internal"
	switch kind {
	case match.KindMatchNotFound:
		status, key = fasthttp.StatusNotFound, "error.match_not_found"
	case match.KindMatchNotActive:
		status, key = fasthttp.StatusConflict, "error.match_not_active"
	case match.KindNotParticipant:
		status, key = fasthttp.StatusForbidden, "error.not_participant"
	case match.KindNotYourTurn:
		status, key = fasthttp.StatusConflict, "error.not_your_turn"
	case match.KindIllegalMove:
		status, key = fasthttp.StatusUnprocessableEntity, "error.illegal_move"
	case match.KindBadRequest:
		status, key = fasthttp.StatusBadRequest, "error.bad_request"
	}

	fallback := err.Error()
	if kind == match.KindInternal {
		// Internal detail stays in the logs, not on the wire.
		obslog.L().Error("api_internal_error",
			zap.String("match_id", matchID),
			zap.Error(err),
		)
		fallback = "internal error"
	}
	msg := s.cat.RenderOr(key, fallback, map[string]any{"MatchID": matchID})
	s.writeJSON(ctx, status, matchdto.ErrorEnvelope{
		Error: matchdto.APIError{Code: string(kind), Message: msg},
	})
}

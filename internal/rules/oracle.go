package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Winner identifies the side a terminal verdict favors. Empty for draws.
type Winner string

const (
	WinnerWhite Winner = "white"
	WinnerBlack Winner = "black"
	WinnerNone  Winner = ""
)

// TerminalKind classifies a game-ending verdict produced by move application.
type TerminalKind string

const (
	TerminalCheckmate TerminalKind = "CHECKMATE"
	TerminalStalemate TerminalKind = "STALEMATE"
	TerminalDraw      TerminalKind = "DRAW"
)

// Move is a proposed move in coordinate form. Promotion is a single piece
// letter (q, r, b, n; case-insensitive) and must be present when the move
// requires one.
type Move struct {
	Origin      string
	Destination string
	Promotion   string
}

// UCI renders the move in UCI notation.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.Origin) + strings.TrimSpace(m.Destination) + strings.TrimSpace(m.Promotion))
}

// Terminal reports that the applied move ended the game.
type Terminal struct {
	Kind   TerminalKind
	Winner Winner
}

// Verdict is the oracle's answer for a proposed move. When Legal is false
// every other field is zero. A non-nil Terminal means the resulting
// position ends the game.
type Verdict struct {
	Legal    bool
	UCI      string
	SAN      string
	NextFEN  string
	Terminal *Terminal
}

// Oracle validates a proposed move against a position reached from startFEN
// by the given UCI history, and yields the resulting position plus any
// terminal condition. Implementations are pure and deterministic.
type Oracle interface {
	Apply(startFEN string, movesUCI []string, mv Move) (Verdict, error)
}

// LibraryOracle implements Oracle on top of corentings/chess. The live game
// is rebuilt from the start position and the stored history on every call,
// so repetition and fifty-move draw detection see the full game.
type LibraryOracle struct{}

func NewOracle() *LibraryOracle { return &LibraryOracle{} }

func (o *LibraryOracle) Apply(startFEN string, movesUCI []string, mv Move) (Verdict, error) {
	uci := mv.UCI()
	if !validUCISyntax(uci) {
		return Verdict{}, nil
	}

	game, err := reconstruct(startFEN, movesUCI)
	if err != nil {
		return Verdict{}, err
	}

	pos := game.Position()
	decoded, derr := nchess.UCINotation{}.Decode(pos, uci)
	if derr != nil {
		return Verdict{}, nil
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
	if err := game.Move(decoded, nil); err != nil {
		return Verdict{}, nil
	}

	v := Verdict{
		Legal:   true,
		UCI:     uci,
		SAN:     san,
		NextFEN: game.FEN(),
	}

	switch game.Outcome() {
	case nchess.WhiteWon:
		v.Terminal = &Terminal{Kind: TerminalCheckmate, Winner: WinnerWhite}
	case nchess.BlackWon:
		v.Terminal = &Terminal{Kind: TerminalCheckmate, Winner: WinnerBlack}
	case nchess.Draw:
		kind := TerminalDraw
		if game.Method() == nchess.Stalemate {
			kind = TerminalStalemate
		}
		v.Terminal = &Terminal{Kind: kind, Winner: WinnerNone}
	}
	return v, nil
}

// reconstruct rebuilds the live game by replaying the stored UCI history on
// the start position. A history that fails to replay means the stored state
// is corrupt, which is an internal fault rather than an illegal move.
func reconstruct(startFEN string, movesUCI []string) (*nchess.Game, error) {
	fen := strings.TrimSpace(startFEN)
	if fen == "" {
		fen = StartingFEN
	}
	fenOpt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid start position: %w", err)
	}
	game := nchess.NewGame(fenOpt)
	for i, u := range movesUCI {
		if err := game.PushNotationMove(u, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, u, err)
		}
	}
	return game, nil
}

// validUCISyntax checks [a-h][1-8][a-h][1-8] with an optional [qrbn] suffix.
func validUCISyntax(s string) bool {
	if len(s) < 4 || len(s) > 5 {
		return false
	}
	if s[0] < 'a' || s[0] > 'h' || s[2] < 'a' || s[2] > 'h' {
		return false
	}
	if s[1] < '1' || s[1] > '8' || s[3] < '1' || s[3] > '8' {
		return false
	}
	if len(s) == 5 {
		switch s[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}
	return true
}

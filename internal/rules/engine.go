// Package rules adapts github.com/corentings/chess to the game.Rules contract.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/hotseat-chess/internal/game"
)

// Chess is the game.Rules implementation.
type Chess struct{}

func New() Chess { return Chess{} }

func (Chess) NewGame() game.Engine {
	return &Engine{game: nchess.NewGame()}
}

func (Chess) FromPosition(pos game.Position) (game.Engine, error) {
	opt, err := nchess.FEN(strings.TrimSpace(string(pos)))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Engine{game: nchess.NewGame(opt)}, nil
}

// Engine wraps one nchess.Game.
type Engine struct {
	game *nchess.Game
}

// ApplyMove plays origin to destination. The promotion piece is only tried
// when the plain move is refused, which is the case for a pawn reaching the
// last rank.
func (e *Engine) ApplyMove(origin, destination game.Square, promotion game.PieceKind) (game.MoveDescriptor, error) {
	if !origin.Valid() || !destination.Valid() {
		return game.MoveDescriptor{}, fmt.Errorf("%w: bad square %q-%q", game.ErrIllegalMove, origin, destination)
	}
	uci := string(origin) + string(destination)
	desc, err := e.playUCI(uci)
	if err != nil && promotion != game.NoPiece {
		desc, err = e.playUCI(uci + string(promotion))
	}
	return desc, err
}

// ApplyNotation plays a SAN move such as "Nf3" or "exd8=Q+".
func (e *Engine) ApplyNotation(san string) (game.MoveDescriptor, error) {
	pos := e.game.Position()
	mv, err := nchess.AlgebraicNotation{}.Decode(pos, strings.TrimSpace(san))
	if err != nil {
		return game.MoveDescriptor{}, fmt.Errorf("%w: %q: %v", game.ErrIllegalMove, san, err)
	}
	return e.play(pos, mv)
}

func (e *Engine) playUCI(uci string) (game.MoveDescriptor, error) {
	pos := e.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return game.MoveDescriptor{}, fmt.Errorf("%w: %s: %v", game.ErrIllegalMove, uci, err)
	}
	return e.play(pos, mv)
}

// play submits mv and describes the move the game recorded, which carries
// the full set of tags.
func (e *Engine) play(pos *nchess.Position, mv *nchess.Move) (game.MoveDescriptor, error) {
	if err := e.game.Move(mv, nil); err != nil {
		return game.MoveDescriptor{}, fmt.Errorf("%w: %s: %v", game.ErrIllegalMove, mv, err)
	}
	moves := e.game.Moves()
	played := moves[len(moves)-1]
	return game.MoveDescriptor{
		Origin:      game.Square(played.S1().String()),
		Destination: game.Square(played.S2().String()),
		Side:        sideOf(pos.Turn()),
		Captured:    capturedKind(pos, played),
		Notation:    nchess.AlgebraicNotation{}.Encode(pos, played),
		Promotion:   kindOf(played.Promo()),
	}, nil
}

func (e *Engine) Position() game.Position { return game.Position(e.game.FEN()) }

func (e *Engine) SideToMove() game.Side { return sideOf(e.game.Position().Turn()) }

func (e *Engine) IsCheckmate() bool {
	return e.game.Position().Status() == nchess.Checkmate
}

// IsDraw covers stalemate, the automatic draws the engine records as an
// outcome, and threefold repetition or the fifty-move rule once claimable.
func (e *Engine) IsDraw() bool {
	if e.game.Outcome() == nchess.Draw {
		return true
	}
	if e.game.Position().Status() == nchess.Stalemate {
		return true
	}
	for _, method := range e.game.EligibleDraws() {
		switch method {
		case nchess.ThreefoldRepetition, nchess.FiftyMoveRule:
			return true
		}
	}
	return false
}

// IsCheck uses the check tag of the last move. A game built from a FEN has no
// moves yet, so the engine is asked through kingCapturable instead.
func (e *Engine) IsCheck() bool {
	moves := e.game.Moves()
	if n := len(moves); n > 0 {
		return moves[n-1].HasTag(nchess.Check)
	}
	return kingCapturable(e.game.Position())
}

// kingCapturable reports whether the opponent, given the move, could take the
// king of the side to move. The opponent's own king is lifted off the board
// so pins on the checking piece do not hide the attack.
func kingCapturable(pos *nchess.Position) bool {
	side := pos.Turn()
	squares := pos.Board().SquareMap()
	target := nchess.NoSquare
	for sq, p := range squares {
		if p.Type() != nchess.King {
			continue
		}
		if p.Color() == side {
			target = sq
		} else {
			delete(squares, sq)
		}
	}
	if target == nchess.NoSquare {
		return false
	}
	fen := nchess.NewBoard(squares).String() + " " + side.Other().String() + " - - 0 1"
	opt, err := nchess.FEN(fen)
	if err != nil {
		return false
	}
	for _, mv := range nchess.NewGame(opt).ValidMoves() {
		if mv.S2() == target {
			return true
		}
	}
	return false
}

func capturedKind(pos *nchess.Position, mv *nchess.Move) game.PieceKind {
	board := pos.Board()
	if p := board.Piece(mv.S2()); p != nchess.NoPiece {
		return kindOf(p.Type())
	}
	// 앙파상: 폰이 빈 칸으로 대각 이동
	if mv.HasTag(nchess.EnPassant) ||
		(board.Piece(mv.S1()).Type() == nchess.Pawn && mv.S1().File() != mv.S2().File()) {
		return game.Pawn
	}
	return game.NoPiece
}

func sideOf(c nchess.Color) game.Side {
	if c == nchess.Black {
		return game.Black
	}
	return game.White
}

func kindOf(pt nchess.PieceType) game.PieceKind {
	switch pt {
	case nchess.Pawn:
		return game.Pawn
	case nchess.Knight:
		return game.Knight
	case nchess.Bishop:
		return game.Bishop
	case nchess.Rook:
		return game.Rook
	case nchess.Queen:
		return game.Queen
	case nchess.King:
		return game.King
	default:
		return game.NoPiece
	}
}

// DrawBoard renders pos as text from the perspective side. dark swaps the
// glyph colours for dark terminals.
func DrawBoard(pos game.Position, perspective game.Side, dark bool) (string, error) {
	opt, err := nchess.FEN(strings.TrimSpace(string(pos)))
	if err != nil {
		return "", fmt.Errorf("parse fen: %w", err)
	}
	color := nchess.White
	if perspective == game.Black {
		color = nchess.Black
	}
	return nchess.NewGame(opt).Position().Board().Draw2(color, dark), nil
}

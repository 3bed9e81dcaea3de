package game

import (
	"fmt"
	"strings"
)

// CapturedPieces lists piece symbols in capture order. White holds what white
// has taken. Symbols depend on the piece kind only.
type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

var pieceSymbols = map[PieceKind]string{
	Pawn: "♟", Knight: "♞", Bishop: "♝", Rook: "♜", Queen: "♛", King: "♚",
}

// PieceSymbol returns the glyph of a captured piece kind, or the empty string
// for an unknown kind.
func PieceSymbol(kind PieceKind) string {
	return pieceSymbols[kind]
}

// ComputeCapturedPieces rebuilds both capture lists from scratch.
func ComputeCapturedPieces(plies []Ply) CapturedPieces {
	out := CapturedPieces{White: []string{}, Black: []string{}}
	for _, p := range plies {
		if p.Captured == NoPiece {
			continue
		}
		symbol := PieceSymbol(p.Captured)
		if symbol == "" {
			continue
		}
		switch p.Side {
		case White:
			out.White = append(out.White, symbol)
		case Black:
			out.Black = append(out.Black, symbol)
		}
	}
	return out
}

type StatusKind string

const (
	StatusNormalTurn StatusKind = "normal"
	StatusCheck      StatusKind = "check"
	StatusCheckmate  StatusKind = "checkmate"
	StatusDraw       StatusKind = "draw"
)

type DisplayStatus struct {
	Kind       StatusKind `json:"kind"`
	SideToMove Side       `json:"side_to_move"`
}

// Terminal reports whether the game is over.
func (d DisplayStatus) Terminal() bool {
	return d.Kind == StatusCheckmate || d.Kind == StatusDraw
}

// Winner returns the side that delivered mate. The side to move in a
// checkmate position is the loser.
func (d DisplayStatus) Winner() (Side, bool) {
	if d.Kind != StatusCheckmate {
		return "", false
	}
	return d.SideToMove.Opponent(), true
}

// ComputeDisplayStatus classifies a position. Checkmate wins over draw, draw
// over check.
func ComputeDisplayStatus(src StatusSource) DisplayStatus {
	status := DisplayStatus{Kind: StatusNormalTurn, SideToMove: src.SideToMove()}
	switch {
	case src.IsCheckmate():
		status.Kind = StatusCheckmate
	case src.IsDraw():
		status.Kind = StatusDraw
	case src.IsCheck():
		status.Kind = StatusCheck
	}
	return status
}

// StatusOf evaluates a bare position. Draws that depend on earlier positions
// (threefold repetition) are invisible here; use Store.Status for those.
func StatusOf(rules Rules, pos Position) (DisplayStatus, error) {
	engine, err := rules.FromPosition(pos)
	if err != nil {
		return DisplayStatus{}, fmt.Errorf("status of %q: %w", pos, err)
	}
	return ComputeDisplayStatus(engine), nil
}

// FormatMoveHistory renders plies as numbered move pairs, "1. e4 e5".
func FormatMoveHistory(plies []Ply) []string {
	lines := make([]string, 0, (len(plies)+1)/2)
	for i := 0; i < len(plies); i += 2 {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. %s", i/2+1, plies[i].Notation)
		if i+1 < len(plies) {
			b.WriteString(" ")
			b.WriteString(plies[i+1].Notation)
		}
		lines = append(lines, b.String())
	}
	return lines
}

// Snapshot is a GameState together with every view derived from it.
type Snapshot struct {
	State    GameState      `json:"state"`
	Captured CapturedPieces `json:"captured"`
	Status   DisplayStatus  `json:"status"`
	History  []string       `json:"history"`
}

func (s Snapshot) CanUndo() bool { return len(s.State.Plies) > 0 }

// BuildSnapshot derives all views from state. src must describe state.Position.
func BuildSnapshot(state GameState, src StatusSource) Snapshot {
	return Snapshot{
		State:    state,
		Captured: ComputeCapturedPieces(state.Plies),
		Status:   ComputeDisplayStatus(src),
		History:  FormatMoveHistory(state.Plies),
	}
}

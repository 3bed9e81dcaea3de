package game

// Side is the colour of a player.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Valid reports whether s is White or Black.
func (s Side) Valid() bool { return s == White || s == Black }

// PieceKind is the lowercase piece letter used by SAN and FEN.
type PieceKind string

const (
	NoPiece PieceKind = ""
	Pawn    PieceKind = "p"
	Knight  PieceKind = "n"
	Bishop  PieceKind = "b"
	Rook    PieceKind = "r"
	Queen   PieceKind = "q"
	King    PieceKind = "k"
)

// PromotionPolicy is the promotion piece attached to every move request.
// Engines ignore it for moves that are not promotions.
const PromotionPolicy = Queen

// Square is an algebraic square name such as "e4".
type Square string

// Valid reports whether sq names one of the 64 board squares.
func (sq Square) Valid() bool {
	if len(sq) != 2 {
		return false
	}
	return sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// Position is the rules engine's FEN serialization of a board state.
type Position string

const StartPosition Position = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// MoveDescriptor is what an engine reports for a move it accepted.
type MoveDescriptor struct {
	Origin      Square
	Destination Square
	Side        Side
	Captured    PieceKind
	Notation    string
	Promotion   PieceKind
}

// Ply is one accepted half-move. Plies are only built from engine descriptors.
type Ply struct {
	Origin      Square    `json:"from"`
	Destination Square    `json:"to"`
	Side        Side      `json:"side"`
	Captured    PieceKind `json:"captured,omitempty"`
	Notation    string    `json:"san"`
	Promotion   PieceKind `json:"promotion,omitempty"`
}

func plyFrom(d MoveDescriptor) Ply {
	return Ply{
		Origin:      d.Origin,
		Destination: d.Destination,
		Side:        d.Side,
		Captured:    d.Captured,
		Notation:    d.Notation,
		Promotion:   d.Promotion,
	}
}

// GameState is the authoritative record of a game: the current position and
// every ply that led to it from StartPosition.
type GameState struct {
	Position Position `json:"fen"`
	Plies    []Ply    `json:"plies"`
}

// Clone returns a copy that shares no memory with s.
func (s GameState) Clone() GameState {
	return GameState{Position: s.Position, Plies: clonePlies(s.Plies)}
}

// Notations returns the SAN of every ply in order.
func (s GameState) Notations() []string {
	out := make([]string, len(s.Plies))
	for i, p := range s.Plies {
		out[i] = p.Notation
	}
	return out
}

func clonePlies(plies []Ply) []Ply {
	out := make([]Ply, len(plies))
	copy(out, plies)
	return out
}

package game

// StatusSource answers the status questions DisplayStatus is derived from.
type StatusSource interface {
	IsCheckmate() bool
	IsDraw() bool
	IsCheck() bool
	SideToMove() Side
}

// Engine is one rules-engine instance holding a game in progress.
//
// ApplyMove and ApplyNotation must return an error wrapping ErrIllegalMove when
// the move is rejected. A rejected move should leave the engine untouched;
// Store rebuilds the engine from its ply log when it does not.
type Engine interface {
	StatusSource
	ApplyMove(origin, destination Square, promotion PieceKind) (MoveDescriptor, error)
	ApplyNotation(notation string) (MoveDescriptor, error)
	Position() Position
}

// Rules creates engines.
type Rules interface {
	NewGame() Engine
	FromPosition(pos Position) (Engine, error)
}

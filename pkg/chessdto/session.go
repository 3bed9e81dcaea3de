package chessdto

import "time"

type Ply struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Side      string `json:"side"`
	SAN       string `json:"san"`
	Captured  string `json:"captured,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type Status struct {
	Kind       string `json:"kind"`
	SideToMove string `json:"side_to_move"`
	Winner     string `json:"winner,omitempty"`
	Text       string `json:"text"`
	// Class is the CSS class of the status line: checkmate, check,
	// white-turn or black-turn.
	Class string `json:"class"`
}

// SessionState is everything the browser needs to draw one board.
type SessionState struct {
	SessionID string         `json:"session_id"`
	FEN       string         `json:"fen"`
	Plies     []Ply          `json:"plies"`
	MovesSAN  []string       `json:"moves_san"`
	History   string         `json:"history"`
	Captured  CapturedPieces `json:"captured"`
	Status    Status         `json:"status"`
	PlyCount  int            `json:"ply_count"`
	CanUndo   bool           `json:"can_undo"`
	UpdatedAt time.Time      `json:"updated_at"`
}

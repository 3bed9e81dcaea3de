package chessdto

// MoveRequest is the body of POST /api/sessions/{id}/moves. Squares are
// algebraic names as reported by the board widget.
type MoveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type MoveResponse struct {
	Accepted bool          `json:"accepted"`
	Ply      *Ply          `json:"ply,omitempty"`
	State    *SessionState `json:"state"`
}

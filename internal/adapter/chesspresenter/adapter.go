package chesspresenter

import (
	"strings"

	"github.com/park285/hotseat-chess/internal/game"
	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
)

func ToDTOState(s *board.SessionState, f *Formatter) *chessdto.SessionState {
	if s == nil {
		return nil
	}
	snap := s.Snapshot
	plies := make([]chessdto.Ply, 0, len(snap.State.Plies))
	for _, p := range snap.State.Plies {
		plies = append(plies, toDTOPly(p))
	}
	return &chessdto.SessionState{
		SessionID: s.SessionID,
		FEN:       string(snap.State.Position),
		Plies:     plies,
		MovesSAN:  snap.State.Notations(),
		History:   strings.Join(snap.History, "\n"),
		Captured: chessdto.CapturedPieces{
			White: append([]string{}, snap.Captured.White...),
			Black: append([]string{}, snap.Captured.Black...),
		},
		Status:    f.Status(snap.Status),
		PlyCount:  len(snap.State.Plies),
		CanUndo:   snap.CanUndo(),
		UpdatedAt: s.UpdatedAt,
	}
}

func ToDTOMove(m *board.MoveSummary, f *Formatter) *chessdto.MoveResponse {
	if m == nil {
		return nil
	}
	out := &chessdto.MoveResponse{Accepted: m.Accepted, State: ToDTOState(m.State, f)}
	if m.Ply != nil {
		p := toDTOPly(*m.Ply)
		out.Ply = &p
	}
	return out
}

func toDTOPly(p game.Ply) chessdto.Ply {
	return chessdto.Ply{
		From:      string(p.Origin),
		To:        string(p.Destination),
		Side:      string(p.Side),
		SAN:       p.Notation,
		Captured:  string(p.Captured),
		Promotion: string(p.Promotion),
	}
}

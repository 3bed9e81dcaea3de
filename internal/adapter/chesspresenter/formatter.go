package chesspresenter

import (
	"github.com/park285/hotseat-chess/internal/game"
	"github.com/park285/hotseat-chess/internal/msgcat"
	"github.com/park285/hotseat-chess/pkg/chessdto"
)

// Formatter turns game values into catalog text. A nil catalog or a missing
// key falls back to English.
type Formatter struct {
	catalog *msgcat.Catalog
}

func NewFormatter(catalog *msgcat.Catalog) *Formatter {
	return &Formatter{catalog: catalog}
}

func (f *Formatter) render(key string, data any, fallback string) string {
	if f == nil {
		return fallback
	}
	return f.catalog.RenderOr(key, data, fallback)
}

func (f *Formatter) SideName(side game.Side) string {
	if side == game.Black {
		return f.render("side.black", nil, "Black")
	}
	return f.render("side.white", nil, "White")
}

// Status renders the status line and its CSS class. Both game-over kinds
// share the checkmate class.
func (f *Formatter) Status(st game.DisplayStatus) chessdto.Status {
	out := chessdto.Status{
		Kind:       string(st.Kind),
		SideToMove: string(st.SideToMove),
		Class:      string(st.SideToMove) + "-turn",
	}
	side := f.SideName(st.SideToMove)
	switch st.Kind {
	case game.StatusCheckmate:
		winner, _ := st.Winner()
		out.Winner = string(winner)
		out.Class = "checkmate"
		out.Text = f.render("status.checkmate", map[string]string{"Winner": f.SideName(winner)},
			"Checkmate! "+f.SideName(winner)+" wins!")
	case game.StatusDraw:
		out.Class = "checkmate"
		out.Text = f.render("status.draw", nil, "Draw!")
	case game.StatusCheck:
		out.Class = "check"
		out.Text = f.render("status.check", map[string]string{"Side": side}, "Check! "+side+" to move")
	default:
		out.Text = f.render("status.turn", map[string]string{"Side": side}, side+" to move")
	}
	return out
}

func (f *Formatter) EmptyHistory() string {
	return f.render("history.empty", nil, "No moves yet.")
}

func (f *Formatter) Rejected(from, to string) string {
	return f.render("move.rejected", map[string]string{"From": from, "To": to}, "Illegal move: "+from+" to "+to)
}

// Error builds the wire error for one of the chessdto error codes.
func (f *Formatter) Error(code string, retryable bool) chessdto.DomainError {
	return chessdto.DomainError{
		Code:      code,
		Message:   f.render("error."+code, nil, code),
		Retryable: retryable,
	}
}

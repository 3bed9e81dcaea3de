package chesspresenter

import (
	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
	"go.uber.org/zap"
)

// Publisher pushes a rendered state to everyone watching the session.
type Publisher interface {
	Publish(sessionID string, state *chessdto.SessionState) error
}

// Presenter renders service results and fans changed states out to the live
// feed, without coupling the HTTP layer to it.
type Presenter struct {
	formatter *Formatter
	publisher Publisher
	logger    *zap.Logger
}

func NewPresenter(formatter *Formatter, publisher Publisher, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{formatter: formatter, publisher: publisher, logger: logger}
}

func (p *Presenter) Formatter() *Formatter { return p.formatter }

// State renders s without publishing it.
func (p *Presenter) State(s *board.SessionState) *chessdto.SessionState {
	return ToDTOState(s, p.formatter)
}

// Changed renders s and publishes it.
func (p *Presenter) Changed(s *board.SessionState) *chessdto.SessionState {
	dto := ToDTOState(s, p.formatter)
	p.publish(dto)
	return dto
}

// Move renders m and publishes the new state when the move was accepted.
func (p *Presenter) Move(m *board.MoveSummary) *chessdto.MoveResponse {
	dto := ToDTOMove(m, p.formatter)
	if dto != nil && dto.Accepted {
		p.publish(dto.State)
	}
	return dto
}

func (p *Presenter) publish(state *chessdto.SessionState) {
	if p.publisher == nil || state == nil {
		return
	}
	if err := p.publisher.Publish(state.SessionID, state); err != nil {
		p.logger.Warn("chess_publish_failed", zap.String("session_id", state.SessionID), zap.Error(err))
	}
}

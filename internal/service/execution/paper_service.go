package execution

import (
	"context"
	"sync"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	"SonicTrader/pkg/logger"

	"github.com/google/uuid"
)

// PaperService accepts every trade without touching a venue.
type PaperService struct {
	log *logger.Logger

	mu     sync.Mutex
	filled []models.TradeRequest
}

func NewPaperService(l *logger.Logger) *PaperService {
	if l == nil {
		l = logger.NewNop()
	}
	return &PaperService{log: l}
}

func (s *PaperService) Submit(ctx context.Context, req models.TradeRequest) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig := "paper-" + uuid.NewString()

	s.mu.Lock()
	s.filled = append(s.filled, req)
	s.mu.Unlock()

	s.log.Info("paper trade filled",
		logger.String("trade_id", req.ID),
		logger.String("pair", req.Base+"/"+req.Quote),
		logger.String("action", string(req.Action)),
		logger.Float64("amount", req.Amount),
		logger.Float64("price", req.Price),
		logger.String("signature", sig),
	)
	return []string{sig}, nil
}

// Filled returns a copy of every request accepted so far.
func (s *PaperService) Filled() []models.TradeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TradeRequest(nil), s.filled...)
}

var _ drepo.TradeService = (*PaperService)(nil)

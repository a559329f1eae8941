package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
	pkghttp "SonicTrader/pkg/http"
)

const tradesPath = "/v1/trades"

var ErrNoSignatures = errors.New("execution service returned no signatures")

type submitResponse struct {
	Signatures []string `json:"signatures"`
}

// HTTPService submits trades to a remote execution service.
type HTTPService struct {
	baseURL string
	client  *pkghttp.Client
}

func NewHTTPService(baseURL string, client *pkghttp.Client) *HTTPService {
	return &HTTPService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Submit posts the request and returns the confirmation signatures.
func (s *HTTPService) Submit(ctx context.Context, req models.TradeRequest) ([]string, error) {
	var resp submitResponse
	err := s.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    s.baseURL + tradesPath,
		Body:   req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("submit trade %s: %w", req.ID, err)
	}
	if len(resp.Signatures) == 0 {
		return nil, fmt.Errorf("submit trade %s: %w", req.ID, ErrNoSignatures)
	}
	return resp.Signatures, nil
}

var _ drepo.TradeService = (*HTTPService)(nil)

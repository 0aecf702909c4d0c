package analytics

import (
	"context"
	"fmt"
	"time"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	"ORBScanner/pkg/config"
)

// HTTPFlowSource fetches options flow and the gamma flip level.
type HTTPFlowSource struct {
	base *HTTPServiceBase
	now  func() time.Time
}

func NewHTTPFlowSource(cfg *config.Config) *HTTPFlowSource {
	return &HTTPFlowSource{base: NewHTTPServiceBase(cfg), now: time.Now}
}

type flowReq struct {
	Symbol string `json:"symbol"`
}

type flowResp struct {
	CallPremium float64 `json:"call_premium"`
	PutPremium  float64 `json:"put_premium"`
	GammaFlip   float64 `json:"gamma_flip"`
}

func (s *HTTPFlowSource) Flow(ctx context.Context, symbol string) (models.OptionsFlow, error) {
	var out models.OptionsFlow
	var fr flowResp
	if err := s.base.PostJSONWithRetry(ctx, "/flow/snapshot", flowReq{Symbol: symbol}, &fr); err != nil {
		return out, fmt.Errorf("flow snapshot %s: %w", symbol, err)
	}
	out.Symbol = symbol
	out.CallPremium = fr.CallPremium
	out.PutPremium = fr.PutPremium
	out.GammaFlip = fr.GammaFlip
	out.Timestamp = s.now()
	return out, nil
}

var _ domrepo.FlowSource = (*HTTPFlowSource)(nil)

package analytics

import (
	"context"
	"fmt"
	"time"

	"ORBScanner/internal/domain/models"
	domsvc "ORBScanner/internal/domain/service"
	"ORBScanner/pkg/config"
)

// HTTPModelScorer calls the external predictive model.
type HTTPModelScorer struct {
	base *HTTPServiceBase
	now  func() time.Time
}

func NewHTTPModelScorer(cfg *config.Config) *HTTPModelScorer {
	return &HTTPModelScorer{base: NewHTTPServiceBase(cfg), now: time.Now}
}

type modelReq struct {
	Symbol   string             `json:"symbol"`
	Features map[string]float64 `json:"features"`
	Horizon  string             `json:"horizon"`
}

type modelResp struct {
	ProbaUp    float64 `json:"proba_up"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

func (s *HTTPModelScorer) Predict(ctx context.Context, symbol string, features map[string]float64) (models.ModelScore, error) {
	var out models.ModelScore
	var mr modelResp
	err := s.base.PostJSONWithRetry(ctx, "/model/predict", modelReq{Symbol: symbol, Features: features, Horizon: "intraday"}, &mr)
	if err != nil {
		return out, fmt.Errorf("model predict %s: %w", symbol, err)
	}
	if mr.ProbaUp < 0 || mr.ProbaUp > 1 {
		return out, fmt.Errorf("model predict %s: proba_up %v outside [0,1]", symbol, mr.ProbaUp)
	}
	out.Symbol = symbol
	out.ProbaUp = mr.ProbaUp
	out.Confidence = mr.Confidence
	out.Model = mr.Model
	out.Timestamp = s.now()
	return out, nil
}

var _ domsvc.ModelScorer = (*HTTPModelScorer)(nil)

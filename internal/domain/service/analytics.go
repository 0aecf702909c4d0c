package service

import (
	"context"

	"ORBScanner/internal/domain/models"
)

// ModelScorer predicts the probability of an upside move for a symbol from features.
type ModelScorer interface {
	Predict(ctx context.Context, symbol string, features map[string]float64) (models.ModelScore, error)
}

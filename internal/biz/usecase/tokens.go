package usecase

import (
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// Tokenizer counts the tokens of a text under the named encoding.
// Implementations must be deterministic and never return a negative count.
type Tokenizer interface {
	CountTokens(encoding, text string) int
}

// TokenEstimator estimates the prompt size of a message sequence for a model
type TokenEstimator struct {
	catalog   *domain.ModelCatalog
	tokenizer Tokenizer
}

// NewTokenEstimator creates a new token estimator
func NewTokenEstimator(catalog *domain.ModelCatalog, tokenizer Tokenizer) *TokenEstimator {
	return &TokenEstimator{catalog: catalog, tokenizer: tokenizer}
}

// Estimate returns the number of prompt tokens the entries consume for model.
// Each entry costs the per-message overhead plus the tokens of its role and
// content; the reply priming overhead is added once.
func (e *TokenEstimator) Estimate(entries []domain.Entry, model string) (int, error) {
	spec, err := e.catalog.Resolve(model)
	if err != nil {
		return 0, err
	}
	return e.count(entries, spec), nil
}

// Budget returns the prompt token budget of model.
func (e *TokenEstimator) Budget(model string) (int, error) {
	spec, err := e.catalog.Resolve(model)
	if err != nil {
		return 0, err
	}
	return spec.Budget(), nil
}

// EntryTokens returns what a single entry adds to the estimate of model.
func (e *TokenEstimator) EntryTokens(entry domain.Entry, model string) (int, error) {
	spec, err := e.catalog.Resolve(model)
	if err != nil {
		return 0, err
	}
	return e.count([]domain.Entry{entry}, spec) - spec.ReplyPriming, nil
}

// Spec returns the resolved spec of model.
func (e *TokenEstimator) Spec(model string) (domain.ModelSpec, error) {
	return e.catalog.Resolve(model)
}

func (e *TokenEstimator) count(entries []domain.Entry, spec domain.ModelSpec) int {
	total := 0
	for _, entry := range entries {
		total += spec.TokensPerMessage
		total += e.tokenizer.CountTokens(spec.Encoding, string(entry.Role))
		total += e.tokenizer.CountTokens(spec.Encoding, entry.Content)
	}
	return total + spec.ReplyPriming
}

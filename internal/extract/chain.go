package extract

import (
	"go.uber.org/zap"
)

// Strategy is one way to extract a field from a page. ok=false means
// the strategy found nothing usable; the chain moves on.
type Strategy struct {
	Name string
	Fn   func(*Page) (string, bool)
}

// Chain tries strategies in priority order, returning the first hit.
type Chain struct {
	Field      string
	strategies []Strategy
}

// NewChain creates a fallback chain for the named field.
func NewChain(field string, strategies ...Strategy) *Chain {
	return &Chain{Field: field, strategies: strategies}
}

// Extract runs the chain against a page. A miss on every strategy
// returns ("", false); extraction never fails.
func (c *Chain) Extract(p *Page) (string, bool) {
	for _, s := range c.strategies {
		if val, ok := s.Fn(p); ok {
			return val, true
		}
		zap.L().Debug("extract: strategy missed, trying next",
			zap.String("field", c.Field),
			zap.String("strategy", s.Name),
			zap.String("url", p.URL),
		)
	}
	return "", false
}

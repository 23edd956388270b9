package session

import (
	"context"
	"fmt"

	"github.com/focusnest/wellness-service/internal/effectiveness"
)

const uncategorised = "unspecified"

var moduleKinds = map[effectiveness.Module]Kind{
	effectiveness.ModuleBreathing: KindBreathing,
	effectiveness.ModulePMR:       KindPMR,
	effectiveness.ModuleStress:    KindStressRelief,
}

// Samples feeds effectiveness reports from completed sessions that carry
// both stress readings, grouped by technique.
func (s *Service) Samples(ctx context.Context, userID string, module effectiveness.Module) ([]effectiveness.Sample, error) {
	kind, ok := moduleKinds[module]
	if !ok {
		return nil, fmt.Errorf("%w: %q", effectiveness.ErrInvalidModule, module)
	}
	sessions, err := s.repo.ListRated(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	samples := make([]effectiveness.Sample, 0, len(sessions))
	for _, sess := range sessions {
		if sess.StressBefore == nil || sess.StressAfter == nil {
			continue
		}
		category := sess.Technique
		if category == "" {
			category = uncategorised
		}
		samples = append(samples, effectiveness.Sample{
			Category: category,
			Before:   float64(*sess.StressBefore),
			After:    float64(*sess.StressAfter),
		})
	}
	return samples, nil
}

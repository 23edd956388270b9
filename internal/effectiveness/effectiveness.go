package effectiveness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

// Module names a family of sessions that record before/after stress levels.
type Module string

const (
	ModuleBreathing Module = "breathing"
	ModulePMR       Module = "pmr"
	ModuleStress    Module = "stress"
)

// ValidModules lists the modules effectiveness can be computed for.
var ValidModules = []Module{ModuleBreathing, ModulePMR, ModuleStress}

// CategoryLabel names what a module's categories are called in reports.
func (m Module) CategoryLabel() string {
	if m == ModuleBreathing {
		return "pattern"
	}
	return "technique"
}

// ErrInvalidModule indicates an unknown module name.
var ErrInvalidModule = sharederrors.New(sharederrors.KindValidation, "invalid effectiveness module")

// ParseModule validates a raw module name.
func ParseModule(raw string) (Module, error) {
	m := Module(strings.ToLower(strings.TrimSpace(raw)))
	for _, v := range ValidModules {
		if v == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidModule, raw)
}

// Sample is one completed session carrying both stress readings.
type Sample struct {
	Category string
	Before   float64
	After    float64
}

// CategoryStat aggregates the samples of one category.
type CategoryStat struct {
	Category         string  `json:"category"`
	Sessions         int     `json:"sessions"`
	AverageReduction float64 `json:"average_reduction"`
}

// Report is the effectiveness summary for one module.
type Report struct {
	Module                 Module         `json:"module,omitempty"`
	CategoryLabel          string         `json:"category_label,omitempty"`
	TotalSessions          int            `json:"total_sessions"`
	AverageStressReduction float64        `json:"average_stress_reduction"`
	MostEffective          string         `json:"most_effective"`
	Breakdown              []CategoryStat `json:"breakdown"`
}

// Compute aggregates samples. With no samples every figure is zero and
// MostEffective is empty. The most effective category has the highest mean
// reduction; ties go to the category with more sessions, then to the one
// seen first.
func Compute(samples []Sample) Report {
	report := Report{Breakdown: []CategoryStat{}}
	if len(samples) == 0 {
		return report
	}

	type acc struct {
		sum   float64
		count int
	}
	var (
		order  []string
		byName = make(map[string]*acc)
		total  float64
	)
	for _, s := range samples {
		delta := s.Before - s.After
		total += delta
		a, ok := byName[s.Category]
		if !ok {
			a = &acc{}
			byName[s.Category] = a
			order = append(order, s.Category)
		}
		a.sum += delta
		a.count++
	}

	report.TotalSessions = len(samples)
	report.AverageStressReduction = total / float64(len(samples))

	best := -1
	for _, name := range order {
		a := byName[name]
		stat := CategoryStat{Category: name, Sessions: a.count, AverageReduction: a.sum / float64(a.count)}
		report.Breakdown = append(report.Breakdown, stat)

		if best < 0 {
			best = len(report.Breakdown) - 1
			continue
		}
		leader := report.Breakdown[best]
		if stat.AverageReduction > leader.AverageReduction ||
			(stat.AverageReduction == leader.AverageReduction && stat.Sessions > leader.Sessions) {
			best = len(report.Breakdown) - 1
		}
	}
	report.MostEffective = report.Breakdown[best].Category
	return report
}

// Source loads samples from the session history.
type Source interface {
	Samples(ctx context.Context, userID string, module Module) ([]Sample, error)
}

// Service answers effectiveness queries on demand.
type Service struct {
	source Source
}

// NewService wires a Service against source.
func NewService(source Source) (*Service, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	return &Service{source: source}, nil
}

// ComputeEffectiveness reports the module's effectiveness for the user.
func (s *Service) ComputeEffectiveness(ctx context.Context, userID string, module Module) (Report, error) {
	if strings.TrimSpace(userID) == "" {
		return Report{}, sharederrors.New(sharederrors.KindValidation, "user id is required")
	}
	if _, err := ParseModule(string(module)); err != nil {
		return Report{}, err
	}
	samples, err := s.source.Samples(ctx, userID, module)
	if err != nil {
		return Report{}, err
	}
	report := Compute(samples)
	report.Module = module
	report.CategoryLabel = module.CategoryLabel()
	return report, nil
}

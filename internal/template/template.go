// Package template holds the static CPTED checklist definition and expands
// it into concrete assessment rows.
//
// Expansion happens exactly once, when an assessment is created on the
// device. The generated item identities are never regenerated afterwards:
// zone/principle keys, sort order and the copied item text are frozen so
// that guidance and report lookups keep matching the same item across
// pushes, pulls and template revisions.
package template

import (
	_ "embed"
	"fmt"
	"sync"
	"time"

	"cpted-sync/internal/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed checklist.yaml
var checklistYAML []byte

// Checklist is the static template: zones containing principles containing
// item texts.
type Checklist struct {
	Version int    `yaml:"version"`
	Zones   []Zone `yaml:"zones"`
}

type Zone struct {
	Key        string      `yaml:"key"`
	Name       string      `yaml:"name"`
	Principles []Principle `yaml:"principles"`
}

type Principle struct {
	Key   string   `yaml:"key"`
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

// Load parses a checklist from YAML and validates the minimum shape an
// expansion needs.
func Load(data []byte) (*Checklist, error) {
	var c Checklist
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse checklist: %w", err)
	}
	if len(c.Zones) == 0 {
		return nil, fmt.Errorf("checklist has no zones")
	}
	seen := make(map[string]bool)
	for _, z := range c.Zones {
		if z.Key == "" || z.Name == "" {
			return nil, fmt.Errorf("zone missing key or name")
		}
		if seen[z.Key] {
			return nil, fmt.Errorf("duplicate zone key %q", z.Key)
		}
		seen[z.Key] = true
		for _, p := range z.Principles {
			if p.Key == "" {
				return nil, fmt.Errorf("zone %q: principle missing key", z.Key)
			}
		}
	}
	return &c, nil
}

var (
	defaultOnce      sync.Once
	defaultChecklist *Checklist
	defaultErr       error
)

// Default returns the embedded checklist, parsed once.
func Default() (*Checklist, error) {
	defaultOnce.Do(func() {
		defaultChecklist, defaultErr = Load(checklistYAML)
	})
	return defaultChecklist, defaultErr
}

// ItemCount returns the number of items across all zones and principles.
func (c *Checklist) ItemCount() int {
	n := 0
	for _, z := range c.Zones {
		for _, p := range z.Principles {
			n += len(p.Items)
		}
	}
	return n
}

// Expand materializes the template for one assessment: one ZoneScore per
// zone in template order, and one ItemScore per item with a fresh UUID and a
// global sort order. Callers persist the result once and never call Expand
// again for the same assessment.
func (c *Checklist) Expand(assessmentID string) ([]domain.ZoneScore, []domain.ItemScore) {
	zones := make([]domain.ZoneScore, 0, len(c.Zones))
	var items []domain.ItemScore

	order := 0
	for zi, z := range c.Zones {
		zones = append(zones, domain.ZoneScore{
			AssessmentID: assessmentID,
			ZoneKey:      z.Key,
			ZoneName:     z.Name,
			SortOrder:    zi,
		})
		for _, p := range z.Principles {
			for _, text := range p.Items {
				items = append(items, domain.ItemScore{
					ID:           uuid.NewString(),
					AssessmentID: assessmentID,
					ZoneKey:      z.Key,
					PrincipleKey: p.Key,
					SortOrder:    order,
					ItemText:     text,
				})
				order++
			}
		}
	}
	return zones, items
}

// NewAssessment builds a fresh in-progress assessment shell with a
// client-generated UUID. The caller fills in property and assessor fields.
func NewAssessment(now time.Time) domain.Assessment {
	return domain.Assessment{
		ID:             uuid.NewString(),
		Status:         domain.StatusInProgress,
		AssessmentDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

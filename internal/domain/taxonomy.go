package domain

import (
	"fmt"
	"slices"
	"sort"
)

// ActionTaxonomy groups payment action labels by the order state they imply.
// Pending is informational: anything neither failed nor completed is pending.
type ActionTaxonomy struct {
	Failed    []string `yaml:"fail"`
	Pending   []string `yaml:"pending"`
	Completed []string `yaml:"complete"`
}

func DefaultActionTaxonomy() ActionTaxonomy {
	return ActionTaxonomy{
		Failed:    []string{"cancel", "void", "decline"},
		Pending:   []string{"authorize", "refund"},
		Completed: []string{"capture", "sale"},
	}
}

func (t ActionTaxonomy) IsFailAction(action string) bool {
	return slices.Contains(t.Failed, action)
}

func (t ActionTaxonomy) IsCompleteAction(action string) bool {
	return slices.Contains(t.Completed, action)
}

// Validate reports labels configured as both failed and completed. Such a
// label makes an attempt classify as failed and completed at once.
func (t ActionTaxonomy) Validate() error {
	var overlap []string
	for _, a := range t.Failed {
		if t.IsCompleteAction(a) && !slices.Contains(overlap, a) {
			overlap = append(overlap, a)
		}
	}
	if len(overlap) == 0 {
		return nil
	}
	sort.Strings(overlap)
	return fmt.Errorf("%w: actions listed as both fail and complete: %v", ErrPreconditionViolation, overlap)
}

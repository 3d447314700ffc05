package service

import (
	"nodeclass/internal/config"
	"nodeclass/internal/domain"
)

// Messages returned with domain.ErrForbidden
const (
	ReasonReadOnly               = "nodeclass is running in read-only mode"
	ReasonClassificationDisabled = "Node classification has been disabled"
)

// Gate applies feature flags to mutating calls
type Gate struct {
	features config.Features
}

// NewGate creates a gate for the given flags
func NewGate(features config.Features) Gate {
	return Gate{features: features}
}

// CheckMutation rejects every write in read-only mode
func (g Gate) CheckMutation() error {
	if !g.features.AllowsMutation() {
		return domain.Forbidden(ReasonReadOnly)
	}
	return nil
}

// CheckClassificationEdit rejects writes that change classes or parameters
// while node classification is disabled
func (g Gate) CheckClassificationEdit(touches bool) error {
	if err := g.CheckMutation(); err != nil {
		return err
	}
	if touches && !g.features.AllowsClassificationEdits() {
		return domain.Forbidden(ReasonClassificationDisabled)
	}
	return nil
}

// CheckGroupUpdate applies the gate to a partial group update. Clearing
// classes or parameters counts as an edit.
func (g Gate) CheckGroupUpdate(u *domain.GroupUpdate) error {
	return g.CheckClassificationEdit(u.TouchesClassification())
}

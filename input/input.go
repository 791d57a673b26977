// Package input holds the requests accepted by the API and the
// CLI, along with their validation.
package input

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
)

// Session opens a new mount workflow.
type Session struct {
	Category mountflow.Category `json:"category,omitempty" yaml:"category,omitempty" validate:"omitempty,oneof=auth secret"`
}

// FieldChange is an edit of a single mount field.
type FieldChange struct {
	Field string `json:"field" yaml:"field" validate:"required,field"`
	Value string `json:"value" yaml:"value"`
}

// ConfigFields is an edit of the pending backend configuration.
// A nil value removes the field.
type ConfigFields struct {
	Fields map[string]any `json:"fields" yaml:"fields" validate:"required"`
}

// ConfigPanel shows or hides the configuration panel.
type ConfigPanel struct {
	Visible *bool `json:"visible" yaml:"visible" validate:"required"`
}

// MountPlan describes a mount and its configuration in one go.
type MountPlan struct {
	Category        mountflow.Category `json:"category,omitempty" yaml:"category,omitempty" validate:"omitempty,oneof=auth secret"`
	Type            string             `json:"type" yaml:"type" validate:"required"`
	Path            string             `json:"path,omitempty" yaml:"path,omitempty" validate:"mountpath"`
	Description     string             `json:"description,omitempty" yaml:"description,omitempty"`
	Local           bool               `json:"local,omitempty" yaml:"local,omitempty"`
	SealWrap        bool               `json:"sealWrap,omitempty" yaml:"sealWrap,omitempty"`
	DefaultLeaseTTL string             `json:"defaultLeaseTtl,omitempty" yaml:"defaultLeaseTtl,omitempty" validate:"duration"`
	MaxLeaseTTL     string             `json:"maxLeaseTtl,omitempty" yaml:"maxLeaseTtl,omitempty" validate:"duration"`
	Options         map[string]string  `json:"options,omitempty" yaml:"options,omitempty"`
	Config          map[string]any     `json:"config,omitempty" yaml:"config,omitempty"`
}

// Workflow is what a plan is applied to.
type Workflow interface {
	OnFieldChanged(ctx context.Context, field, value string) error
	SetConfigFields(fields map[string]any) error
}

// Changes lists the field edits of the plan. The type always
// comes first so that the path it fills in can be overridden.
func (p MountPlan) Changes() []FieldChange {
	changes := []FieldChange{{Field: "type", Value: p.Type}}
	if p.Path != "" {
		changes = append(changes, FieldChange{Field: "path", Value: p.Path})
	}
	if p.Description != "" {
		changes = append(changes, FieldChange{Field: "description", Value: p.Description})
	}
	if p.Local {
		changes = append(changes, FieldChange{Field: "local", Value: strconv.FormatBool(p.Local)})
	}
	if p.SealWrap {
		changes = append(changes, FieldChange{Field: "sealWrap", Value: strconv.FormatBool(p.SealWrap)})
	}
	if p.DefaultLeaseTTL != "" {
		changes = append(changes, FieldChange{Field: "config.defaultLeaseTtl", Value: p.DefaultLeaseTTL})
	}
	if p.MaxLeaseTTL != "" {
		changes = append(changes, FieldChange{Field: "config.maxLeaseTtl", Value: p.MaxLeaseTTL})
	}
	keys := make([]string, 0, len(p.Options))
	for k := range p.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		changes = append(changes, FieldChange{Field: fmt.Sprintf("options.%s", k), Value: p.Options[k]})
	}
	return changes
}

// Apply replays the plan on w.
func (p MountPlan) Apply(ctx context.Context, w Workflow) error {
	for _, ch := range p.Changes() {
		if err := w.OnFieldChanged(ctx, ch.Field, ch.Value); err != nil {
			return errors.Wrapf(err, "error setting %s", ch.Field)
		}
	}
	if len(p.Config) == 0 {
		return nil
	}
	if err := w.SetConfigFields(p.Config); err != nil {
		return errors.Wrapf(err, "error setting the %s config", p.Type)
	}
	return nil
}

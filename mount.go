package mountflow

import (
	"time"

	"golang.org/x/exp/maps"
)

// Category tells whether a mount is an auth method or a secret engine.
type Category string

const (
	CategoryAuth   Category = "auth"
	CategorySecret Category = "secret"
)

func (c Category) IsValid() bool {
	return c == CategoryAuth || c == CategorySecret
}

// RecordType returns the resource type used to allocate
// a mount record of this category.
func (c Category) RecordType() string {
	if c == CategorySecret {
		return "secret-engine"
	}
	return "auth-method"
}

type MountConfig struct {
	DefaultLeaseTTL string `json:"defaultLeaseTtl,omitempty" validate:"duration"`
	MaxLeaseTTL     string `json:"maxLeaseTtl,omitempty" validate:"duration"`
}

// Mount is a provisioned instance of a secret engine
// or an auth method at a specific path.
type Mount struct {
	ID          string            `json:"id,omitempty"`
	Type        string            `json:"type,omitempty" validate:"required"`
	Path        string            `json:"path,omitempty" validate:"required,mountpath"`
	Category    Category          `json:"category,omitempty" validate:"required,oneof=auth secret"`
	Description string            `json:"description,omitempty"`
	Local       bool              `json:"local,omitempty"`
	SealWrap    bool              `json:"sealWrap,omitempty"`
	Config      MountConfig       `json:"config"`
	Options     map[string]string `json:"options,omitempty"`
	CreatedAt   *time.Time        `json:"createdAt,omitempty"`
}

func (m *Mount) Clone() *Mount {
	return &Mount{
		ID:          m.ID,
		Type:        m.Type,
		Path:        m.Path,
		Category:    m.Category,
		Description: m.Description,
		Local:       m.Local,
		SealWrap:    m.SealWrap,
		Config:      m.Config,
		Options:     maps.Clone(m.Options),
		CreatedAt:   m.CreatedAt,
	}
}

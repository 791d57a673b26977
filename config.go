package mountflow

import (
	"time"

	"github.com/runabol/mountflow/clone"
)

// ConfigTypePrefix namespaces the generic per-backend
// configuration resource types.
const ConfigTypePrefix = "auth-config/"

// BackendConfig holds the backend-specific settings attached
// to an auth mount after it was enabled.
type BackendConfig struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type,omitempty"`
	MountID   string         `json:"mountId,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

func (c *BackendConfig) Clone() *BackendConfig {
	return &BackendConfig{
		ID:        c.ID,
		Type:      c.Type,
		MountID:   c.MountID,
		Fields:    clone.CloneAnyMap(c.Fields),
		UpdatedAt: c.UpdatedAt,
	}
}

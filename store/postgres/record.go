package postgres

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
)

type mountRecord struct {
	ID              string    `db:"id"`
	Category        string    `db:"category"`
	Type            string    `db:"type_"`
	Path            string    `db:"path"`
	Description     string    `db:"description"`
	Local           bool      `db:"local_"`
	SealWrap        bool      `db:"seal_wrap"`
	DefaultLeaseTTL string    `db:"default_lease_ttl"`
	MaxLeaseTTL     string    `db:"max_lease_ttl"`
	Options         []byte    `db:"options"`
	CreatedAt       time.Time `db:"created_at"`
}

type configRecord struct {
	ID        string    `db:"id"`
	MountID   string    `db:"mount_id"`
	Type      string    `db:"type_"`
	Fields    []byte    `db:"fields"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r mountRecord) toMount() (*mountflow.Mount, error) {
	var opts map[string]string
	if r.Options != nil {
		if err := json.Unmarshal(r.Options, &opts); err != nil {
			return nil, errors.Wrapf(err, "error deserializing mount.options")
		}
	}
	createdAt := r.CreatedAt
	return &mountflow.Mount{
		ID:          r.ID,
		Category:    mountflow.Category(r.Category),
		Type:        r.Type,
		Path:        r.Path,
		Description: r.Description,
		Local:       r.Local,
		SealWrap:    r.SealWrap,
		Config: mountflow.MountConfig{
			DefaultLeaseTTL: r.DefaultLeaseTTL,
			MaxLeaseTTL:     r.MaxLeaseTTL,
		},
		Options:   opts,
		CreatedAt: &createdAt,
	}, nil
}

func (r configRecord) toConfig() (*mountflow.BackendConfig, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(r.Fields, &fields); err != nil {
		return nil, errors.Wrapf(err, "error deserializing config.fields")
	}
	updatedAt := r.UpdatedAt
	return &mountflow.BackendConfig{
		ID:        r.ID,
		MountID:   r.MountID,
		Type:      r.Type,
		Fields:    fields,
		UpdatedAt: &updatedAt,
	}, nil
}

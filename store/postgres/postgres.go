package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/encrypt"
	"github.com/runabol/mountflow/internal/redact"
	"github.com/runabol/mountflow/internal/uuid"
	"github.com/runabol/mountflow/store"
)

const uniqueViolation = "23505"

type PostgresAdapter struct {
	db            *sqlx.DB
	encryptionKey string
	sealer        *encrypt.Sealer
}

type Option = func(a *PostgresAdapter)

// WithEncryptionKey encrypts sensitive config fields at rest.
func WithEncryptionKey(key string) Option {
	return func(a *PostgresAdapter) {
		a.encryptionKey = key
	}
}

func NewPostgresAdapter(dsn string, opts ...Option) (*PostgresAdapter, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to postgres")
	}
	a := &PostgresAdapter{db: db}
	for _, o := range opts {
		o(a)
	}
	if a.sealer, err = encrypt.NewSealer(a.encryptionKey, redact.NewRedacter().IsSensitive); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *PostgresAdapter) ExecScript(script string) error {
	_, err := a.db.Exec(script)
	return err
}

func (a *PostgresAdapter) CreateMount(ctx context.Context, m *mountflow.Mount) error {
	if m.ID == "" {
		m.ID = uuid.NewUUID()
	}
	if m.CreatedAt == nil {
		now := time.Now().UTC()
		m.CreatedAt = &now
	}
	opts, err := marshalOptions(m.Options)
	if err != nil {
		return err
	}
	q := `insert into mounts (
	        id,category,type_,path,description,local_,seal_wrap,
	        default_lease_ttl,max_lease_ttl,options,created_at
	      ) 
	      values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = a.db.ExecContext(ctx, q,
		m.ID,                     // $1
		string(m.Category),       // $2
		m.Type,                   // $3
		m.Path,                   // $4
		m.Description,            // $5
		m.Local,                  // $6
		m.SealWrap,               // $7
		m.Config.DefaultLeaseTTL, // $8
		m.Config.MaxLeaseTTL,     // $9
		opts,                     // $10
		m.CreatedAt.UTC(),        // $11
	)
	if err != nil {
		return translate(err, m)
	}
	return nil
}

func (a *PostgresAdapter) UpdateMount(ctx context.Context, m *mountflow.Mount) error {
	opts, err := marshalOptions(m.Options)
	if err != nil {
		return err
	}
	q := `update mounts set 
	        type_ = $1,
	        path = $2,
	        description = $3,
	        local_ = $4,
	        seal_wrap = $5,
	        default_lease_ttl = $6,
	        max_lease_ttl = $7,
	        options = $8
	      where id = $9`
	res, err := a.db.ExecContext(ctx, q,
		m.Type, m.Path, m.Description, m.Local, m.SealWrap,
		m.Config.DefaultLeaseTTL, m.Config.MaxLeaseTTL, opts, m.ID)
	if err != nil {
		return translate(err, m)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "error updating mount %s", m.ID)
	}
	if n == 0 {
		return store.ErrMountNotFound
	}
	return nil
}

func (a *PostgresAdapter) SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error {
	if c.ID == "" {
		c.ID = uuid.NewUUID()
	}
	if c.UpdatedAt == nil {
		now := time.Now().UTC()
		c.UpdatedAt = &now
	}
	sealed, err := a.sealer.SealFields(c.Fields)
	if err != nil {
		return err
	}
	fields, err := json.Marshal(sealed)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize config.fields")
	}
	q := `insert into backend_configs (id,mount_id,type_,fields,updated_at) 
	      values ($1,$2,$3,$4,$5)
	      on conflict (mount_id) do update set 
	        type_ = excluded.type_,
	        fields = excluded.fields,
	        updated_at = excluded.updated_at
	      returning id`
	var id string
	if err := a.db.GetContext(ctx, &id, q, c.ID, c.MountID, c.Type, fields, c.UpdatedAt.UTC()); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return store.ErrMountNotFound
		}
		return errors.Wrapf(err, "error inserting config to the db")
	}
	c.ID = id
	return nil
}

func (a *PostgresAdapter) ListMounts(ctx context.Context, category mountflow.Category) ([]*mountflow.Mount, error) {
	rs := make([]mountRecord, 0)
	if err := a.db.SelectContext(ctx, &rs, `SELECT * FROM mounts where category = $1 order by path asc`, string(category)); err != nil {
		return nil, errors.Wrapf(err, "error getting mounts from db")
	}
	result := make([]*mountflow.Mount, 0, len(rs))
	for _, r := range rs {
		m, err := r.toMount()
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

func (a *PostgresAdapter) GetConfig(ctx context.Context, mountID string) (*mountflow.BackendConfig, error) {
	r := configRecord{}
	if err := a.db.GetContext(ctx, &r, `SELECT * FROM backend_configs where mount_id = $1`, mountID); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrConfigNotFound
		}
		return nil, errors.Wrapf(err, "error fetching config from db")
	}
	c, err := r.toConfig()
	if err != nil {
		return nil, err
	}
	if c.Fields, err = a.sealer.OpenFields(c.Fields); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *PostgresAdapter) HealthCheck(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "select 1 from mounts limit 1"); err != nil {
		return errors.Wrapf(err, "error reading from mounts table")
	}
	return nil
}

func (a *PostgresAdapter) Close() error {
	return a.db.Close()
}

func marshalOptions(opts map[string]string) (*string, error) {
	if opts == nil {
		return nil, nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize mount.options")
	}
	s := string(b)
	return &s, nil
}

func translate(err error, m *mountflow.Mount) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return store.NewValidationError("path", "path is already in use at %s", m.Path)
	}
	return errors.Wrapf(err, "error writing mount %s to the db", m.ID)
}

// Package vault persists mounts directly in a Vault server: auth
// methods through sys/auth, secret engines through sys/mounts and
// auth method configuration through auth/<path>/config.
package vault

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/catalog"
	"github.com/runabol/mountflow/store"
)

type VaultAdapter struct {
	client *api.Client
}

type Option = func(c *api.Client)

func WithToken(token string) Option {
	return func(c *api.Client) {
		c.SetToken(token)
	}
}

func WithNamespace(ns string) Option {
	return func(c *api.Client) {
		c.SetNamespace(ns)
	}
}

func NewVaultAdapter(address string, opts ...Option) (*VaultAdapter, error) {
	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, errors.Wrapf(cfg.Error, "error reading vault client config")
	}
	if address != "" {
		cfg.Address = address
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating vault client")
	}
	for _, o := range opts {
		o(client)
	}
	return &VaultAdapter{client: client}, nil
}

// Mounts are identified by their path, without the trailing slash.
func mountID(path string) string {
	return strings.Trim(path, "/")
}

func (a *VaultAdapter) CreateMount(ctx context.Context, m *mountflow.Mount) error {
	path := mountID(m.Path)
	var err error
	if m.Category == mountflow.CategoryAuth {
		err = a.client.Sys().EnableAuthWithOptionsWithContext(ctx, path, &api.EnableAuthOptions{
			Type:        m.Type,
			Description: m.Description,
			Local:       m.Local,
			SealWrap:    m.SealWrap,
			Options:     m.Options,
			Config: api.AuthConfigInput{
				DefaultLeaseTTL: m.Config.DefaultLeaseTTL,
				MaxLeaseTTL:     m.Config.MaxLeaseTTL,
			},
		})
	} else {
		err = a.client.Sys().MountWithContext(ctx, path, &api.MountInput{
			Type:        m.Type,
			Description: m.Description,
			Local:       m.Local,
			SealWrap:    m.SealWrap,
			Options:     m.Options,
			Config: api.MountConfigInput{
				DefaultLeaseTTL: m.Config.DefaultLeaseTTL,
				MaxLeaseTTL:     m.Config.MaxLeaseTTL,
			},
		})
	}
	if err != nil {
		return translate(err)
	}
	m.ID = path
	return nil
}

// UpdateMount tunes the mount. The type and path of an enabled
// mount can not be changed.
func (a *VaultAdapter) UpdateMount(ctx context.Context, m *mountflow.Mount) error {
	if mountID(m.Path) != m.ID {
		return store.NewValidationError("path", "the path of an enabled mount can not be changed.")
	}
	tunePath := m.ID
	if m.Category == mountflow.CategoryAuth {
		tunePath = "auth/" + m.ID
	}
	desc := m.Description
	err := a.client.Sys().TuneMountWithContext(ctx, tunePath, api.MountConfigInput{
		Description:     &desc,
		DefaultLeaseTTL: m.Config.DefaultLeaseTTL,
		MaxLeaseTTL:     m.Config.MaxLeaseTTL,
		Options:         m.Options,
	})
	if err != nil {
		if isNotFound(err) {
			return store.ErrMountNotFound
		}
		return translate(err)
	}
	return nil
}

func (a *VaultAdapter) SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error {
	path, err := configPath(c.MountID, c.Type)
	if err != nil {
		return err
	}
	if _, err := a.client.Logical().WriteWithContext(ctx, path, c.Fields); err != nil {
		if isNotFound(err) {
			return store.ErrMountNotFound
		}
		return translate(err)
	}
	c.ID = path
	return nil
}

// configPath returns the API path of the config resource of the
// auth method mounted at mountID. Specialized config types map to
// a sub-path of the config endpoint: "auth-config/aws/client"
// is written to "auth/<path>/config/client".
func configPath(mountID, configType string) (string, error) {
	if !strings.HasPrefix(configType, mountflow.ConfigTypePrefix) {
		return "", errors.Errorf("unsupported config type: %s", configType)
	}
	rest := strings.TrimPrefix(configType, mountflow.ConfigTypePrefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 2 && parts[1] != "" {
		return fmt.Sprintf("auth/%s/config/%s", mountID, parts[1]), nil
	}
	return fmt.Sprintf("auth/%s/config", mountID), nil
}

func (a *VaultAdapter) ListMounts(ctx context.Context, category mountflow.Category) ([]*mountflow.Mount, error) {
	result := make([]*mountflow.Mount, 0)
	if category == mountflow.CategoryAuth {
		auths, err := a.client.Sys().ListAuthWithContext(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "error listing auth methods")
		}
		for path, am := range auths {
			result = append(result, &mountflow.Mount{
				ID:          mountID(path),
				Type:        am.Type,
				Path:        path,
				Category:    mountflow.CategoryAuth,
				Description: am.Description,
				Local:       am.Local,
				SealWrap:    am.SealWrap,
				Options:     am.Options,
				Config: mountflow.MountConfig{
					DefaultLeaseTTL: formatTTL(am.Config.DefaultLeaseTTL),
					MaxLeaseTTL:     formatTTL(am.Config.MaxLeaseTTL),
				},
			})
		}
	} else {
		mounts, err := a.client.Sys().ListMountsWithContext(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "error listing secret engines")
		}
		for path, mo := range mounts {
			result = append(result, &mountflow.Mount{
				ID:          mountID(path),
				Type:        mo.Type,
				Path:        path,
				Category:    mountflow.CategorySecret,
				Description: mo.Description,
				Local:       mo.Local,
				SealWrap:    mo.SealWrap,
				Options:     mo.Options,
				Config: mountflow.MountConfig{
					DefaultLeaseTTL: formatTTL(mo.Config.DefaultLeaseTTL),
					MaxLeaseTTL:     formatTTL(mo.Config.MaxLeaseTTL),
				},
			})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result, nil
}

func formatTTL(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return (time.Duration(seconds) * time.Second).String()
}

func (a *VaultAdapter) GetConfig(ctx context.Context, mountID string) (*mountflow.BackendConfig, error) {
	auths, err := a.client.Sys().ListAuthWithContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "error listing auth methods")
	}
	am, ok := auths[mountID+"/"]
	if !ok {
		return nil, store.ErrConfigNotFound
	}
	configType, ok := catalog.ResolveConfigType(mountflow.CategoryAuth, am.Type)
	if !ok {
		return nil, store.ErrConfigNotFound
	}
	path, err := configPath(mountID, configType)
	if err != nil {
		return nil, err
	}
	secret, err := a.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrConfigNotFound
		}
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	if secret == nil || secret.Data == nil {
		return nil, store.ErrConfigNotFound
	}
	return &mountflow.BackendConfig{
		ID:      path,
		Type:    configType,
		MountID: mountID,
		Fields:  secret.Data,
	}, nil
}

func (a *VaultAdapter) HealthCheck(ctx context.Context) error {
	h, err := a.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "error checking vault health")
	}
	if !h.Initialized {
		return errors.New("vault is not initialized")
	}
	if h.Sealed {
		return errors.New("vault is sealed")
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// translate turns the error messages Vault responds with into
// validation errors. Anything else is returned as is.
func translate(err error) error {
	var apiErr *api.ResponseError
	if !errors.As(err, &apiErr) || len(apiErr.Errors) == 0 {
		return err
	}
	verr := &store.ValidationError{}
	for _, msg := range apiErr.Errors {
		field := ""
		if strings.Contains(msg, "path is already in use") {
			field = "path"
		}
		verr.Errors = append(verr.Errors, store.FieldError{Field: field, Message: msg})
	}
	return verr
}

package engine

import (
	"github.com/pkg/errors"
	"github.com/runabol/mountflow/conf"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/store/badger"
	"github.com/runabol/mountflow/store/inmemory"
	"github.com/runabol/mountflow/store/postgres"
	"github.com/runabol/mountflow/store/vault"
)

const defaultPostgresDSN = "host=localhost user=mountflow password=mountflow dbname=mountflow port=5432 sslmode=disable"

func (e *Engine) initStore() error {
	stype := conf.StringDefault("store.type", store.STORE_INMEMORY)
	adapter, err := e.createAdapter(stype)
	if err != nil {
		return err
	}
	e.adapter = adapter
	e.store = store.New(adapter)
	return nil
}

func (e *Engine) createAdapter(stype string) (store.Adapter, error) {
	if p, ok := e.storeProviders[stype]; ok {
		return p()
	}
	adapter, err := store.NewFromProvider(stype)
	if err != nil && !errors.Is(err, store.ErrProviderNotFound) {
		return nil, err
	}
	if adapter != nil {
		return adapter, nil
	}
	switch stype {
	case store.STORE_INMEMORY:
		return inmemory.NewInMemoryAdapter(), nil
	case store.STORE_POSTGRES:
		return postgres.NewPostgresAdapter(
			conf.StringDefault("store.postgres.dsn", defaultPostgresDSN),
			postgres.WithEncryptionKey(conf.String("store.encryption.key")),
		)
	case store.STORE_BADGER:
		return badger.NewBadgerAdapter(
			conf.StringDefault("store.badger.path", "./data"),
			badger.WithEncryptionKey(conf.String("store.encryption.key")),
		)
	case store.STORE_VAULT:
		return vault.NewVaultAdapter(
			conf.StringDefault("store.vault.address", "http://127.0.0.1:8200"),
			vault.WithToken(conf.String("store.vault.token")),
			vault.WithNamespace(conf.String("store.vault.namespace")),
		)
	default:
		return nil, errors.Errorf("unknown store type: %s", stype)
	}
}

package engine

import (
	"time"

	"github.com/pkg/errors"
	"github.com/runabol/mountflow/conf"
	"github.com/runabol/mountflow/locker"
)

func (e *Engine) initLocker() error {
	ltype := conf.StringDefault("locker.type", locker.LOCKER_INMEMORY)
	l, err := e.createLocker(ltype)
	if err != nil {
		return err
	}
	e.locker = l
	return nil
}

func (e *Engine) createLocker(ltype string) (locker.Locker, error) {
	switch ltype {
	case locker.LOCKER_INMEMORY:
		return locker.NewInMemoryLocker(), nil
	case locker.LOCKER_POSTGRES:
		dsn := conf.StringDefault(
			"locker.postgres.dsn",
			conf.StringDefault("store.postgres.dsn", defaultPostgresDSN),
		)
		return locker.NewPostgresLocker(dsn,
			locker.WithMaxOpenConns(conf.IntDefault("locker.postgres.max_open_conns", 25)),
			locker.WithMaxIdleConns(conf.IntDefault("locker.postgres.max_idle_conns", 25)),
			locker.WithConnMaxLifetime(conf.DurationDefault("locker.postgres.conn_max_lifetime", time.Hour)),
			locker.WithConnMaxIdleTime(conf.DurationDefault("locker.postgres.conn_max_idle_time", time.Minute*5)),
		)
	default:
		return nil, errors.Errorf("unknown locker type: %s", ltype)
	}
}

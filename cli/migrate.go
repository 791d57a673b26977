package cli

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow/conf"
	schema "github.com/runabol/mountflow/db/postgres"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/store/postgres"
	ucli "github.com/urfave/cli/v2"
)

func (c *CLI) migrationCmd() *ucli.Command {
	return &ucli.Command{
		Name:   "migration",
		Usage:  "Run the db migration script",
		Action: migration,
	}
}

func migration(_ *ucli.Context) error {
	stype := conf.StringDefault("store.type", store.STORE_INMEMORY)
	switch stype {
	case store.STORE_POSTGRES:
		dsn := conf.StringDefault(
			"store.postgres.dsn",
			"host=localhost user=mountflow password=mountflow dbname=mountflow port=5432 sslmode=disable",
		)
		pg, err := postgres.NewPostgresAdapter(dsn)
		if err != nil {
			return err
		}
		defer func() {
			if err := pg.Close(); err != nil {
				log.Error().Err(err).Msg("error closing postgres connection")
			}
		}()
		if err := pg.ExecScript(schema.SCHEMA); err != nil {
			return errors.Wrapf(err, "error when trying to create db schema")
		}
	default:
		return errors.Errorf("can't perform db migration on: %s", stype)
	}
	log.Info().Msg("migration completed!")
	return nil
}

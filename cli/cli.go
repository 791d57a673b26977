package cli

import (
	"os"

	"github.com/labstack/echo/v4"
	"github.com/runabol/mountflow/conf"
	"github.com/runabol/mountflow/engine"
	"github.com/runabol/mountflow/internal/logging"
	"github.com/runabol/mountflow/store"
	ucli "github.com/urfave/cli/v2"
)

type CLI struct {
	app *ucli.App
}

func New() *CLI {
	app := &ucli.App{
		Name:  "mountflow",
		Usage: "mount and configure Vault auth methods and secret engines",
	}
	c := &CLI{
		app: app,
	}
	app.Before = c.before
	app.Commands = c.commands()
	return c
}

func (c *CLI) RegisterMiddleware(mw echo.MiddlewareFunc) {
	engine.RegisterMiddleware(mw)
}

func (c *CLI) RegisterStoreProvider(name string, provider store.Provider) {
	engine.RegisterStoreProvider(name, provider)
}

func (c *CLI) Run() error {
	return c.app.Run(os.Args)
}

func (c *CLI) before(ctx *ucli.Context) error {
	if err := conf.LoadConfig(); err != nil {
		return err
	}

	displayBanner()

	if err := logging.SetupLogging(); err != nil {
		return err
	}
	return nil
}

func (c *CLI) commands() []*ucli.Command {
	return []*ucli.Command{
		c.runCmd(),
		c.migrationCmd(),
		c.healthCmd(),
		c.catalogCmd(),
		c.mountCmd(),
	}
}

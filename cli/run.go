package cli

import (
	"github.com/runabol/mountflow/engine"
	ucli "github.com/urfave/cli/v2"
)

func (c *CLI) runCmd() *ucli.Command {
	return &ucli.Command{
		Name:      "run",
		Usage:     "Run the mountflow API server",
		UsageText: "mountflow run",
		Action:    c.run,
	}
}

func (c *CLI) run(_ *ucli.Context) error {
	engine.SetMode(engine.ModeServer)
	return engine.Run()
}

package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/catalog"
	ucli "github.com/urfave/cli/v2"
)

func (c *CLI) catalogCmd() *ucli.Command {
	return &ucli.Command{
		Name:      "catalog",
		Usage:     "List the mountable auth methods or secret engines",
		UsageText: "mountflow catalog [--category auth|secret]",
		Flags: []ucli.Flag{
			categoryFlag(),
		},
		Action: printCatalog,
	}
}

func categoryFlag() ucli.Flag {
	return &ucli.StringFlag{
		Name:  "category",
		Usage: "auth|secret",
		Value: string(mountflow.CategoryAuth),
	}
}

func printCatalog(ctx *ucli.Context) error {
	category := mountflow.Category(ctx.String("category"))
	if !category.IsValid() {
		return errors.Errorf("unknown category: %s", category)
	}
	for _, group := range []catalog.Group{catalog.GroupCloud, catalog.GroupInfra, catalog.GroupGeneric} {
		fmt.Println(color.New(color.Bold).Sprint(group))
		for _, b := range catalog.Backends(category) {
			if b.Group != group {
				continue
			}
			configType, ok := catalog.ResolveConfigType(category, string(b.Type))
			if !ok {
				configType = "-"
			}
			fmt.Printf("  %-22s %-12s %s\n", b.DisplayName, color.CyanString(string(b.Type)), configType)
		}
	}
	return nil
}

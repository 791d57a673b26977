package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/engine"
	"github.com/runabol/mountflow/input"
	"github.com/runabol/mountflow/workflow"
	ucli "github.com/urfave/cli/v2"
)

func (c *CLI) mountCmd() *ucli.Command {
	return &ucli.Command{
		Name:      "mount",
		Usage:     "Mount and configure a backend against the configured store",
		UsageText: "mountflow mount --type github --config organization=acme",
		Flags: []ucli.Flag{
			categoryFlag(),
			&ucli.StringFlag{Name: "type", Usage: "the backend type, e.g. github or kv"},
			&ucli.StringFlag{Name: "path", Usage: "the mount path. Defaults to the type"},
			&ucli.StringFlag{Name: "description"},
			&ucli.BoolFlag{Name: "local"},
			&ucli.BoolFlag{Name: "seal-wrap"},
			&ucli.StringFlag{Name: "default-lease-ttl", Usage: "e.g. 1h"},
			&ucli.StringFlag{Name: "max-lease-ttl", Usage: "e.g. 24h"},
			&ucli.StringSliceFlag{Name: "option", Usage: "<key>=<value>"},
			&ucli.StringSliceFlag{Name: "config", Usage: "<key>=<value>"},
			&ucli.StringFlag{Name: "file", Usage: "a YAML mount plan"},
		},
		Action: mount,
	}
}

func mount(ctx *ucli.Context) error {
	plan, err := planFromFlags(ctx)
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return errors.Wrapf(err, "invalid mount plan")
	}
	engine.SetMode(engine.ModeLocal)
	if err := engine.Start(); err != nil {
		return err
	}
	defer func() {
		if err := engine.Terminate(); err != nil {
			fmt.Println(err)
		}
	}()
	out, err := execPlan(ctx.Context, plan, engine.NewWorkflow)
	if err != nil {
		return err
	}
	printOutcome(plan, out)
	if !out.Succeeded {
		return errors.New("mount failed")
	}
	return nil
}

func planFromFlags(ctx *ucli.Context) (*input.MountPlan, error) {
	plan := &input.MountPlan{}
	if f := ctx.String("file"); f != "" {
		p, err := input.ReadMountPlanFile(f)
		if err != nil {
			return nil, err
		}
		plan = p
	}
	if ctx.IsSet("category") || plan.Category == "" {
		plan.Category = mountflow.Category(ctx.String("category"))
	}
	overrides := map[string]*string{
		"type":              &plan.Type,
		"path":              &plan.Path,
		"description":       &plan.Description,
		"default-lease-ttl": &plan.DefaultLeaseTTL,
		"max-lease-ttl":     &plan.MaxLeaseTTL,
	}
	for name, target := range overrides {
		if ctx.IsSet(name) {
			*target = ctx.String(name)
		}
	}
	if ctx.IsSet("local") {
		plan.Local = ctx.Bool("local")
	}
	if ctx.IsSet("seal-wrap") {
		plan.SealWrap = ctx.Bool("seal-wrap")
	}
	options, err := parseKeyValues(ctx.StringSlice("option"))
	if err != nil {
		return nil, err
	}
	for k, v := range options {
		if plan.Options == nil {
			plan.Options = make(map[string]string)
		}
		plan.Options[k] = v
	}
	config, err := parseKeyValues(ctx.StringSlice("config"))
	if err != nil {
		return nil, err
	}
	for k, v := range config {
		if plan.Config == nil {
			plan.Config = make(map[string]any)
		}
		plan.Config[k] = v
	}
	return plan, nil
}

func parseKeyValues(kvs []string) (map[string]string, error) {
	result := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.Errorf("invalid key=value pair: %s", kv)
		}
		result[strings.TrimSpace(k)] = v
	}
	return result, nil
}

func execPlan(ctx context.Context, plan *input.MountPlan, newWorkflow func(context.Context, mountflow.Category) (*workflow.Controller, error)) (*workflow.Outcome, error) {
	category := plan.Category
	if category == "" {
		category = mountflow.CategoryAuth
	}
	ctrl, err := newWorkflow(ctx, category)
	if err != nil {
		return nil, err
	}
	defer ctrl.Teardown()
	if err := plan.Apply(ctx, ctrl); err != nil {
		return nil, err
	}
	out := ctrl.MountBackend(ctx)
	if out == nil {
		return nil, errors.New("the mount is already being saved")
	}
	return out, nil
}

func printOutcome(plan *input.MountPlan, out *workflow.Outcome) {
	mark := func(ok bool) string {
		if ok {
			return color.GreenString("yes")
		}
		return color.RedString("no")
	}
	fmt.Printf("type:    %s\n", plan.Type)
	fmt.Printf("mounted: %s\n", mark(out.MountPersisted))
	if len(plan.Config) > 0 {
		fmt.Printf("config:  %s\n", mark(out.ConfigPersisted))
	}
	for _, msg := range out.Errors {
		fmt.Printf("  %s\n", color.RedString(msg))
	}
}

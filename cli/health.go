package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/runabol/mountflow/conf"
	"github.com/runabol/mountflow/health"
	ucli "github.com/urfave/cli/v2"
)

func (c *CLI) healthCmd() *ucli.Command {
	return &ucli.Command{
		Name:   "health",
		Usage:  "Perform a health check",
		Action: healthCheck,
	}
}

func healthCheck(_ *ucli.Context) error {
	chk, err := http.Get(fmt.Sprintf("%s/health", conf.StringDefault("endpoint", "http://localhost:8000")))
	if err != nil {
		return err
	}
	defer chk.Body.Close()
	body, err := io.ReadAll(chk.Body)
	if err != nil {
		return errors.Wrapf(err, "error reading body")
	}

	r := health.HealthCheckResult{}
	if err := json.Unmarshal(body, &r); err != nil {
		return errors.Wrapf(err, "error unmarshalling body")
	}

	fmt.Printf("Status: %s\n", statusString(r.Status))
	names := make([]string, 0, len(r.Services))
	for name := range r.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-8s %s\n", name, statusString(r.Services[name]))
	}

	if chk.StatusCode != http.StatusOK {
		return errors.Errorf("Health check failed. Status Code: %d", chk.StatusCode)
	}
	return nil
}

func statusString(s string) string {
	if s == health.StatusUp {
		return color.GreenString(s)
	}
	return color.RedString(s)
}

package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/conf"
)

func displayBanner() {
	mode := conf.StringDefault("cli.banner.mode", "console")
	if mode == "off" {
		return
	}
	banner := color.WhiteString(fmt.Sprintf(`
  __  __  ___  _   _ _  _ _____ ___ _    _____      __
 |  \/  |/ _ \| | | | \| |_   _| __| |  / _ \ \    / /
 | |\/| | (_) | |_| | .' | | | | _|| |_| (_) \ \/\/ /
 |_|  |_|\___/ \___/|_|\_| |_| |_| |____\___/ \_/\_/

 %s
`, mountflow.FormattedVersion()))

	if mode == "console" {
		fmt.Println(banner)
	} else {
		log.Info().Msg(banner)
	}
}

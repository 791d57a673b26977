package main

import (
	"fmt"
	"os"

	"github.com/runabol/mountflow/cli"
)

func main() {
	if err := cli.New().Run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Command trainer fits the cascade stages offline and publishes artifact bundles.
package main

import (
	"os"

	"github.com/HatiCode/gradecast/cmd/trainer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/jalad-shrimali/cdr-sociometer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

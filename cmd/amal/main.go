package main

import (
	"fmt"
	"os"

	"github.com/wbtio/Amal-Center-sub000/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

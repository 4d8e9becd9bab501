package main

import (
	"fmt"
	"os"

	"github.com/crucial707/labstock/cmd/cli/root"
)

func main() {
	if err := root.GetRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// os-sim simulates a multiprocessor running a workload under a chosen CPU
// scheduling discipline and reports scheduling statistics.
package main

import (
	"os"

	"github.com/me/ossim/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}

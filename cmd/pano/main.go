// pano: capture host and consumers for stitched camera panoramas
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/teslashibe/go-pano/internal/cli"
)

var version = "0.1.0"

func main() {
	cli.Version = version

	if err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}

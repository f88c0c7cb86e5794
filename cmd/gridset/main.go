// Command gridset splits georeferenced label and raster layers into grid
// patches, builds per-class training samples and reassembles predictions.
package main

import (
	"fmt"
	"os"

	"github.com/wgdzlh/gridset/log"
)

func main() {
	defer log.Sync()
	if err := Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

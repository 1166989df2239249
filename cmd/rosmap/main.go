// Command rosmap maps the ROS ecosystem from a workspace of cloned repositories.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/huangsam/rosmap/cmd"
	"github.com/huangsam/rosmap/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	err := cmd.Execute()
	iocache.CloseStores()
	if err != nil {
		log.Error("rosmap failed", "err", err)
		os.Exit(1)
	}
}

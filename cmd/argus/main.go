// Command argus is the CLI entrypoint: attach to a browser target, capture
// its console/exception/network activity into a watcher process, and drive
// it through the commands in internal/cliapp.
package main

import (
	"os"

	"github.com/argus-dev/argus/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Main())
}

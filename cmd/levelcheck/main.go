// Command levelcheck validates level data: teleport destinations and the
// spawn point must land on a free cell from which another teleporter can be
// walked to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/milk9111/tileworld/backend"
	"github.com/milk9111/tileworld/logger"
	"github.com/milk9111/tileworld/prefabs"
	"github.com/milk9111/tileworld/world"
)

func main() {
	backendURL := flag.String("backend", "", "level service base URL (empty checks the built-in levels)")
	dataDir := flag.String("data", "levels", "directory whose level json files override the built-in ones")
	strict := flag.Bool("strict", false, "treat warnings as errors")
	flag.Parse()

	logger.Init("", "")

	spec, err := prefabs.LoadEngineSpec()
	if err != nil {
		logger.Log.WithError(err).Fatal("load engine config")
	}

	var client backend.Client = backend.NewFSClient(*dataDir)
	if *backendURL != "" {
		client = backend.NewHTTPClient(*backendURL, spec.BackendTimeout())
	}

	start := &Start{Layer: spec.Start.Layer, Cell: world.Cell{X: spec.Start.X, Y: spec.Start.Y}}
	problems, err := Check(context.Background(), client, start)
	if err != nil {
		logger.Log.WithError(err).Fatal("check failed")
	}

	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Layer != problems[j].Layer {
			return problems[i].Layer < problems[j].Layer
		}
		return problems[i].Message < problems[j].Message
	})

	failed := false
	for _, p := range problems {
		fmt.Println(p)
		if p.Severity == SeverityError || *strict {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	logger.Log.WithField("warnings", len(problems)).Info("levels ok")
}

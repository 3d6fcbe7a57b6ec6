package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"

	"github.com/milk9111/tileworld/assets"
	"github.com/milk9111/tileworld/backend"
	"github.com/milk9111/tileworld/loader"
	"github.com/milk9111/tileworld/logger"
	"github.com/milk9111/tileworld/prefabs"
)

func main() {
	backendURL := flag.String("backend", "", "level service base URL (overrides backend.base_url; empty serves the built-in levels)")
	dataDir := flag.String("data", "levels", "directory whose level json files override the built-in ones")
	debug := flag.Bool("debug", false, "enable debug mode")
	baseMonitor := flag.Bool("m", false, "use base monitor instead of primary (for multi-monitor setups)")
	logLevel := flag.String("log-level", "", "log level (defaults to LOG_LEVEL or info)")
	logFormat := flag.String("log-format", "", "log format: text or json")
	flag.Parse()

	if *debug && *logLevel == "" {
		*logLevel = "debug"
	}
	logger.Init(*logLevel, *logFormat)

	spec, err := prefabs.LoadEngineSpec()
	if err != nil {
		logger.Log.WithError(err).Fatal("load engine config")
	}

	url := spec.Backend.BaseURL
	if *backendURL != "" {
		url = *backendURL
	}
	var client backend.Client
	if url != "" {
		client = backend.NewHTTPClient(url, spec.BackendTimeout())
		logger.Log.WithField("url", url).Info("using level service")
	} else {
		client = backend.NewFSClient(*dataDir)
		logger.Log.WithField("dir", *dataDir).Info("using built-in levels")
	}

	fetcher := assets.NewFetcher(&http.Client{Timeout: spec.BackendTimeout()}, *dataDir)
	ld := loader.New(client, fetcher, loader.OptionsFromSpec(spec))
	ld.OnProgress(func(p loader.Progress) {
		logger.Log.WithFields(logrus.Fields{
			"layer":  p.Layer,
			"asset":  p.Key.String(),
			"loaded": p.Loaded,
			"total":  p.Total,
		}).Debug("asset loaded")
	})

	var changes <-chan string
	if w, err := prefabs.NewWatcher(existingDirs(prefabs.Dir, *dataDir)...); err != nil {
		logger.Log.WithError(err).Warn("file watcher disabled")
	} else {
		defer w.Close()
		changes = w.Events
		go func() {
			for err := range w.Errors {
				logger.Log.WithError(err).Warn("file watcher")
			}
		}()
	}

	if *baseMonitor {
		ebiten.SetMonitor(ebiten.AppendMonitors(nil)[0])
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle("tileworld")
	ebiten.SetTPS(spec.TargetTPS)

	game := NewGame(context.Background(), spec, ld, changes, *debug)
	if err := ebiten.RunGame(game); err != nil {
		logger.Log.WithError(err).Fatal("game exited")
	}
}

func existingDirs(dirs ...string) []string {
	var out []string
	for _, d := range dirs {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			out = append(out, d)
		}
	}
	return out
}

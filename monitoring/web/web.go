// Package web holds the static page of the queue monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
)

// AssetsDirEnv names the environment variable that points the monitor to a
// directory to serve instead of the embedded page, for editing the page
// without rebuilding.
const AssetsDirEnv = "EVENTQ_MONITOR_ASSETS"

//go:embed dist/*
var staticAssets embed.FS

// Assets returns the files of the monitor page.
func Assets() http.FileSystem {
	if dir, ok := os.LookupEnv(AssetsDirEnv); ok && dir != "" {
		log.WithField("dir", dir).Info("serving monitor assets from disk")
		return http.Dir(dir)
	}

	dist, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		log.Panic(err)
	}

	return http.FS(dist)
}

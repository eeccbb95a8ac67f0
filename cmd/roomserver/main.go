/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// The roomserver command serves the transient-room coordination backend:
// room lifecycle, presence and capacity, multipart upload orchestration,
// burn/one-time download semantics and the expiry reaper.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/archive"
	"github.com/Eusha122/Backend/internal/authn"
	"github.com/Eusha122/Backend/internal/config"
	"github.com/Eusha122/Backend/internal/download"
	"github.com/Eusha122/Backend/internal/httpapi"
	"github.com/Eusha122/Backend/internal/httpapi/middleware"
	"github.com/Eusha122/Backend/internal/invite"
	"github.com/Eusha122/Backend/internal/lifecycle"
	"github.com/Eusha122/Backend/internal/objectstore"
	"github.com/Eusha122/Backend/internal/presence"
	"github.com/Eusha122/Backend/internal/quota"
	"github.com/Eusha122/Backend/internal/ratelimit"
	"github.com/Eusha122/Backend/internal/reaper"
	"github.com/Eusha122/Backend/internal/store/postgres"
	"github.com/Eusha122/Backend/internal/upload"
	"github.com/Eusha122/Backend/pkg/webserver"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("roomserver: %v", err)
	}

	metaStore, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("roomserver: open metadata store: %v", err)
	}

	blobs, err := objectstore.New(objectstore.Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		log.Fatalf("roomserver: configure object store: %v", err)
	}

	auth := authn.New(metaStore, metaStore)
	presenceGate := presence.New(metaStore, metaStore, metaStore)
	presenceGate.ActiveWindow = cfg.ActiveWindow

	guard := ratelimit.NewGuard()
	quotaEngine := quota.New(metaStore)
	uploadOrch := upload.New(metaStore, metaStore, quotaEngine, blobs)

	var geo accesslog.GeoLookup = accesslog.NopGeoLookup{}
	accessLogger := accesslog.New(metaStore, geo)

	sched := lifecycle.NewTimeScheduler()
	lifecycleEngine := lifecycle.New(metaStore, metaStore, blobs, sched)
	downloadCoord := download.New(metaStore, metaStore, blobs, accessLogger, lifecycleEngine, sched)
	archiver := archive.New(metaStore, blobs)

	mailer := invite.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	inviteFlow := invite.New(metaStore, guard, mailer, cfg.FrontendOrigin, cfg.Production)

	api := &httpapi.Server{
		Rooms:            metaStore,
		Files:            metaStore,
		GuestIdx:         metaStore,
		Auth:             auth,
		Presence:         presenceGate,
		Guard:            guard,
		Upload:           uploadOrch,
		Download:         downloadCoord,
		Archive:          archiver,
		Lifecycle:        lifecycleEngine,
		Invite:           inviteFlow,
		AccessLog:        accessLogger,
		Blobs:            blobs,
		AdminBearerToken: cfg.AdminBearerToken,
	}

	ws := webserver.New()
	var mux http.ServeMux
	api.Routes(&mux)

	handler := middleware.Chain(
		middleware.SecurityHeaders,
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: invite.AllowedOrigins(cfg.FrontendOrigin, cfg.Production)}),
	)(&mux)
	ws.Handle("/", handler)

	if err := ws.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("roomserver: listen: %v", err)
	}
	go ws.Serve()
	log.Printf("roomserver: listening on %s", ws.ListenURL())

	sweep := reaper.New(metaStore, metaStore, blobs)
	stopReaper := make(chan struct{})
	go runReaper(sweep, cfg.ReaperInterval, stopReaper)

	waitForShutdown(ws, lifecycleEngine, stopReaper)
}

func runReaper(r *reaper.Reaper, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			res := r.RunOnce(context.Background())
			log.Printf("roomserver: reaper swept %d rooms, %d blobs, %d stale uploads aborted",
				res.RoomsDeleted, res.BlobsDeleted, res.UploadsAborted)
		case <-stop:
			return
		}
	}
}

func waitForShutdown(ws *webserver.Server, lc *lifecycle.Engine, stopReaper chan<- struct{}) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("roomserver: shutting down")
	close(stopReaper)
	lc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ws.Shutdown(ctx); err != nil {
		log.Printf("roomserver: shutdown: %v", err)
	}
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentraumkm.org/internal/config"
	"sentraumkm.org/internal/httpapi"
	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/kv"
	"sentraumkm.org/internal/obs"
	"sentraumkm.org/internal/registry"
	"sentraumkm.org/internal/registry/local"
	"sentraumkm.org/internal/registry/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	blobs, err := kv.OpenSQLite(cfg.StatePath)
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}
	defer blobs.Close()

	manager, err := identity.NewManager(blobs, identity.DefaultDirectory())
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	secret := cfg.TokenSecret
	if secret == "" {
		// Tokens signed with an ephemeral secret die with the process.
		secret = randomSecret()
		log.Printf("SENTRA_AUTH_SECRET is not set; issued tokens will not survive a restart")
	}
	tokens, err := identity.NewTokens(secret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	var (
		svc   *registry.Service
		probe httpapi.ReadyProbe
	)
	localStore := local.New(blobs, manager)
	if cfg.RemoteEnabled() {
		remote, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		defer remote.Close()
		svc = registry.NewDual(remote, localStore, manager)
		probe = httpapi.ReadyProbe{DB: remote.DB()}
		log.Printf("registry backend: postgres with local fallback")
	} else {
		svc = registry.NewLocal(localStore, manager)
		log.Printf("registry backend: local only (%s)", cfg.StatePath)
	}

	api := httpapi.New(manager, tokens, svc, probe, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sentra-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("generate token secret: %v", err)
	}
	return hex.EncodeToString(buf)
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/attribution-relay/internal/attribution"
	"github.com/ignite/attribution-relay/internal/bridge"
	"github.com/ignite/attribution-relay/internal/collect"
	"github.com/ignite/attribution-relay/internal/config"
	"github.com/ignite/attribution-relay/internal/hubspot"
	"github.com/ignite/attribution-relay/internal/pardot"
	"github.com/ignite/attribution-relay/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.RedisAddr,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	st := store.New(store.NewRedisKV(redisClient), cfg.Storage.KeyName, cfg.Storage.TTL())
	resolver := attribution.NewResolver(attribution.ResolverConfig{
		ReferrersToIgnore:  cfg.Attribution.ReferrersToIgnore,
		OrganicHostnames:   cfg.Attribution.OrganicHostnames,
		ReplaceableMediums: cfg.Attribution.ReplaceableMediums,
		LowercaseClickIDs:  cfg.Attribution.LowercaseClickIDs,
	})

	projectors := make(map[string]bridge.FieldProjector)
	var submitter bridge.Submitter
	if cfg.HubSpot.Enabled {
		projectors["hubspot"] = hubspot.FormProjector{}
		submitter = hubspot.NewClient(hubspot.Config{
			PortalID:       cfg.HubSpot.PortalID,
			FormID:         cfg.HubSpot.FormID,
			Endpoint:       cfg.HubSpot.Endpoint,
			TimeoutSeconds: cfg.HubSpot.TimeoutSeconds,
		})
	}
	if cfg.Pardot.Enabled {
		projectors["wpforms"] = pardot.NewWPFormsProjector(cfg.Pardot.FormFields)
		submitter = pardot.NewClient(pardot.Config{
			FormHandlerEndpoint: cfg.Pardot.FormHandlerEndpoint,
			TimeoutSeconds:      cfg.Pardot.TimeoutSeconds,
		})
	}

	dispatcher := bridge.NewDispatcher()
	bridge.New(resolver, st, projectors, submitter).Register(dispatcher)

	handler := collect.NewHandler(dispatcher, collect.Config{
		VisitorCookie:  cfg.Collect.VisitorCookie,
		SessionCookie:  cfg.Collect.SessionCookie,
		CookieDomain:   cfg.Storage.CookieDomain,
		CookieTTL:      cfg.Storage.TTL(),
		AllowedOrigins: cfg.Collect.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("attribution relay listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down attribution relay...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	redisClient.Close()
}

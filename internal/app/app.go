package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hotbags/backend/config"
	"github.com/hotbags/backend/internal/domain"
	"github.com/hotbags/backend/internal/infrastructure/cache"
	"github.com/hotbags/backend/internal/infrastructure/shopify"
	"github.com/hotbags/backend/internal/infrastructure/store"
	"github.com/hotbags/backend/internal/infrastructure/telegram"
	"github.com/hotbags/backend/internal/infrastructure/whatsapp"
	"github.com/hotbags/backend/internal/usecase"
)

// App is the wired dependency graph shared by the server and the CLI.
type App struct {
	Deals    *usecase.DealService
	Resolver *usecase.MetaobjectResolver
	Shop     string

	closers []func() error
}

// New builds stores, clients and services from configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Shop: cfg.Shopify.Shop}
	debug := cfg.Log.Debug

	var (
		sessions domain.SessionStore
		events   domain.EventLog
		errorLog domain.ErrorLog
		db       *store.DB
	)
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
		var err error
		db, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		sessions, events, errorLog = db.Sessions(), db.Events(), db.Errors()
		log.Printf("[STORE] Using %s store", cfg.Store.Driver)
	default:
		sessions, events, errorLog = store.NewMemorySessionStore(), store.NewMemoryEventLog(), store.NewMemoryErrorLog()
		log.Printf("[STORE] Using in-memory store (sessions are lost on restart)")
	}

	var metaobjectCache domain.MetaobjectCache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := redisCache.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, redisCache.Close)
		metaobjectCache = redisCache
	case "database":
		if db == nil {
			a.Close()
			return nil, fmt.Errorf("%w: database cache requires a sql store", domain.ErrUnconfigured)
		}
		metaobjectCache = db.MetaobjectCache()
	default:
		metaobjectCache = cache.NewMemoryCache()
	}

	catalog := shopify.NewClient(shopify.Config{
		Shop:              cfg.Shopify.Shop,
		AccessToken:       cfg.Shopify.AccessToken,
		APIVersion:        cfg.Shopify.APIVersion,
		RequestsPerSecond: cfg.Shopify.RequestsPerSecond,
		Burst:             cfg.Shopify.Burst,
	})
	catalog.SetDebug(debug)
	if cfg.Shopify.Shop == "" {
		log.Printf("WARNING: shopify.shop is not configured - metaobject resolution will fail")
	}

	var messenger domain.Messenger
	switch cfg.Messaging.Provider {
	case "whatsapp":
		messenger = whatsapp.NewClient(whatsapp.Config{
			PhoneNumberID: cfg.Messaging.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.Messaging.WhatsApp.AccessToken,
			APIVersion:    cfg.Messaging.WhatsApp.APIVersion,
		})
	case "telegram":
		sender, err := telegram.NewSender(cfg.Messaging.Telegram.Token)
		if err != nil {
			a.Close()
			return nil, err
		}
		messenger = sender
	}

	a.Resolver = usecase.NewMetaobjectResolver(catalog, metaobjectCache, events, usecase.ResolverConfig{
		ColourType:         cfg.Metaobjects.ColourType,
		EnableDebugLogging: debug,
	})

	a.Deals = usecase.NewDealService(sessions, events, errorLog, a.Resolver, messenger, usecase.DealServiceConfig{
		Shop: cfg.Shopify.Shop,
		MetaobjectTypes: map[domain.MetaobjectField]string{
			domain.FieldColour:       cfg.Metaobjects.ColourType,
			domain.FieldMaterial:     cfg.Metaobjects.MaterialType,
			domain.FieldHardware:     cfg.Metaobjects.HardwareType,
			domain.FieldConstruction: cfg.Metaobjects.ConstructionType,
		},
		TTL:                cfg.Deal.TTL,
		EnableDebugLogging: debug,
	})

	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

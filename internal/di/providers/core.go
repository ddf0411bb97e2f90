// Package providers contains dependency injection providers for the
// Perpetua client.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/cache"
	"github.com/perpetuaapp/perpetua-client/internal/config"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/logger"
	"github.com/perpetuaapp/perpetua-client/internal/selector"
	"github.com/perpetuaapp/perpetua-client/internal/store"
	"github.com/perpetuaapp/perpetua-client/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Perpetua client",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"backend_url", cfg.Backend.URL,
	)

	return log, nil
}

// ProvideStore provides the normalized entity store.
func ProvideStore(i do.Injector) (*store.Store, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return store.New(log.Logger), nil
}

// CacheHandle wraps the TTL cache with shutdown capability.
type CacheHandle struct {
	*cache.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideCache provides the read-through TTL cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c := cache.New(
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
		cache.WithLogger(log.Logger),
	)
	return &CacheHandle{Cache: c}, nil
}

// ProvideSelectorRegistry provides the memoized selector registry.
func ProvideSelectorRegistry(i do.Injector) (*selector.Registry, error) {
	st := do.MustInvoke[*store.Store](i)
	return selector.NewRegistry(st), nil
}

// ClientHandle wraps the API client with shutdown capability.
type ClientHandle struct {
	api.Client
}

// Shutdown implements do.Shutdownable.
func (h *ClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideAPIClient provides the backend RPC client.
func ProvideAPIClient(i do.Injector) (*ClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := api.NewHTTPClient(cfg.Backend, domain.Principal(cfg.Session.Principal), log.Logger)
	return &ClientHandle{Client: client}, nil
}

// ProvideValidator provides the input validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

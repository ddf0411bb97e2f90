// Package di wires the Perpetua client stack together.
package di

import (
	"github.com/samber/do/v2"

	"github.com/perpetuaapp/perpetua-client/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// State layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideSelectorRegistry)

	// Backend client
	do.Provide(injector, providers.ProvideAPIClient)

	// Services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideShelfService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideFollowService)
	do.Provide(injector, providers.ProvideFeedService)

	return injector
}

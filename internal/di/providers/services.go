package providers

import (
	"github.com/samber/do/v2"

	"github.com/perpetuaapp/perpetua-client/internal/logger"
	"github.com/perpetuaapp/perpetua-client/internal/service"
	"github.com/perpetuaapp/perpetua-client/internal/store"
	"github.com/perpetuaapp/perpetua-client/internal/validation"
)

// ProvideSessionService provides the session service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	st := do.MustInvoke[*store.Store](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(st, cacheHandle.Cache, log.Logger), nil
}

// ProvideShelfService provides the shelf service.
func ProvideShelfService(i do.Injector) (*service.ShelfService, error) {
	st := do.MustInvoke[*store.Store](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	clientHandle := do.MustInvoke[*ClientHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewShelfService(st, cacheHandle.Cache, clientHandle.Client, v, log.Logger), nil
}

// ProvideTagService provides the tag discovery service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	st := do.MustInvoke[*store.Store](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	clientHandle := do.MustInvoke[*ClientHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(st, cacheHandle.Cache, clientHandle.Client, log.Logger), nil
}

// ProvideFollowService provides the follow service.
func ProvideFollowService(i do.Injector) (*service.FollowService, error) {
	st := do.MustInvoke[*store.Store](i)
	clientHandle := do.MustInvoke[*ClientHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFollowService(st, clientHandle.Client, log.Logger), nil
}

// ProvideFeedService provides the feed service.
func ProvideFeedService(i do.Injector) (*service.FeedService, error) {
	st := do.MustInvoke[*store.Store](i)
	clientHandle := do.MustInvoke[*ClientHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFeedService(st, clientHandle.Client, log.Logger), nil
}

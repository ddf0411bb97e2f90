package service

import (
	"context"
	"log/slog"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/store"
)

// FollowService maintains the signed-in user's followed tags and users.
// Every mutation refetches the authoritative set afterwards and
// replaces the local copy wholesale, so local state never drifts.
type FollowService struct {
	store  *store.Store
	client api.Client
	logger *slog.Logger
}

// NewFollowService creates a follow service.
func NewFollowService(st *store.Store, client api.Client, logger *slog.Logger) *FollowService {
	return &FollowService{store: st, client: client, logger: logger}
}

// FollowTag follows a tag.
func (f *FollowService) FollowTag(ctx context.Context, tag string) error {
	return run(f.store, store.OpFollow, "tag:"+tag, func() error {
		return f.mutateAndSyncTags(ctx, func() error {
			return f.client.FollowTag(ctx, tag)
		})
	})
}

// UnfollowTag unfollows a tag.
func (f *FollowService) UnfollowTag(ctx context.Context, tag string) error {
	return run(f.store, store.OpFollow, "tag:"+tag, func() error {
		return f.mutateAndSyncTags(ctx, func() error {
			return f.client.UnfollowTag(ctx, tag)
		})
	})
}

// FollowUser follows another principal.
func (f *FollowService) FollowUser(ctx context.Context, principal domain.Principal) error {
	return run(f.store, store.OpFollow, "user:"+principal.String(), func() error {
		return f.mutateAndSyncUsers(ctx, func() error {
			return f.client.FollowUser(ctx, principal)
		})
	})
}

// UnfollowUser unfollows a principal.
func (f *FollowService) UnfollowUser(ctx context.Context, principal domain.Principal) error {
	return run(f.store, store.OpFollow, "user:"+principal.String(), func() error {
		return f.mutateAndSyncUsers(ctx, func() error {
			return f.client.UnfollowUser(ctx, principal)
		})
	})
}

// RefreshFollowedTags replaces the local followed-tag set with the
// backend's.
func (f *FollowService) RefreshFollowedTags(ctx context.Context) error {
	return run(f.store, store.OpFollow, "tags", func() error {
		tags, err := f.client.GetMyFollowedTags(ctx)
		if err != nil {
			return err
		}
		f.store.ReplaceFollowedTags(tags)
		return nil
	})
}

// RefreshFollowedUsers replaces the local followed-user set with the
// backend's.
func (f *FollowService) RefreshFollowedUsers(ctx context.Context) error {
	return run(f.store, store.OpFollow, "users", func() error {
		users, err := f.client.GetMyFollowedUsers(ctx)
		if err != nil {
			return err
		}
		f.store.ReplaceFollowedUsers(users)
		return nil
	})
}

// mutateAndSyncTags applies a follow mutation, then refetches the tag
// set regardless of the mutation outcome so the local copy matches the
// backend even after a mid-flight failure. The mutation error wins.
func (f *FollowService) mutateAndSyncTags(ctx context.Context, mutate func() error) error {
	mutErr := mutate()

	tags, err := f.client.GetMyFollowedTags(ctx)
	if err != nil {
		f.logger.Warn("followed tags resync failed", "error", err)
		if mutErr == nil {
			return err
		}
		return mutErr
	}
	f.store.ReplaceFollowedTags(tags)
	return mutErr
}

func (f *FollowService) mutateAndSyncUsers(ctx context.Context, mutate func() error) error {
	mutErr := mutate()

	users, err := f.client.GetMyFollowedUsers(ctx)
	if err != nil {
		f.logger.Warn("followed users resync failed", "error", err)
		if mutErr == nil {
			return err
		}
		return mutErr
	}
	f.store.ReplaceFollowedUsers(users)
	return mutErr
}

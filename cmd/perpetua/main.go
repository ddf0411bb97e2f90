// Package main runs a scripted Perpetua session against a backend. With
// -dev it serves the in-process backend double first, so the whole
// pipeline can be exercised without a deployed canister.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/perpetuaapp/perpetua-client/internal/api/apitest"
	"github.com/perpetuaapp/perpetua-client/internal/config"
	"github.com/perpetuaapp/perpetua-client/internal/di"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/logger"
	"github.com/perpetuaapp/perpetua-client/internal/selector"
	"github.com/perpetuaapp/perpetua-client/internal/service"
	"github.com/perpetuaapp/perpetua-client/internal/store"
)

func main() {
	injector := di.NewContainer()
	defer func() {
		if err := injector.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	// The -dev and -dev-addr flags are parsed by the config package
	// alongside the rest of the flag surface.
	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perpetua: %v\n", err)
		os.Exit(1)
	}

	if cfg.Dev.Enabled {
		backend := apitest.New()
		srv := &http.Server{Addr: cfg.Dev.Addr, Handler: backend}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "dev backend: %v\n", err)
				os.Exit(1)
			}
		}()
		defer srv.Close()
		// Give the listener a moment before the first request.
		time.Sleep(100 * time.Millisecond)
	}

	if err := run(injector); err != nil {
		fmt.Fprintf(os.Stderr, "perpetua: %v\n", err)
		os.Exit(1)
	}
}

// run walks one scripted session: sign in, create a shelf, add an item,
// reorder the profile, follow a tag, and dump the resulting state.
func run(injector *do.RootScope) error {
	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return err
	}
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return err
	}

	st := do.MustInvoke[*store.Store](injector)
	selectors := do.MustInvoke[*selector.Registry](injector)
	session := do.MustInvoke[*service.SessionService](injector)
	shelves := do.MustInvoke[*service.ShelfService](injector)
	follows := do.MustInvoke[*service.FollowService](injector)
	feeds := do.MustInvoke[*service.FeedService](injector)

	principal := domain.Principal(cfg.Session.Principal)
	if principal.IsAnonymous() {
		principal = "demo-principal"
	}
	if err := session.SignIn(principal); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shelfID, err := shelves.CreateShelf(ctx, "Weekend reading", nil,
		[]domain.ItemContent{domain.MarkdownContent{Text: "# The Dispossessed"}},
		[]string{"fiction"})
	if err != nil {
		return fmt.Errorf("create shelf: %w", err)
	}
	log.Info("created shelf", "shelf_id", shelfID)

	if err := shelves.AddMarkdownItemFromHTML(ctx, shelfID,
		"<h2>Notes</h2><p>Start with chapter one.</p>", nil, false); err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	if _, err := shelves.LoadShelves(ctx, principal, 0, 20); err != nil {
		return fmt.Errorf("load shelves: %w", err)
	}

	if err := follows.FollowTag(ctx, "fiction"); err != nil {
		return fmt.Errorf("follow tag: %w", err)
	}

	if _, err := feeds.LoadRecentShelves(ctx, "", 10); err != nil {
		return fmt.Errorf("load recent: %w", err)
	}

	mine := selectors.ShelvesForUser(principal)()
	log.Info("session state",
		"shelves", len(mine),
		"followed_tags", selectors.FollowedTags()(),
		"recent_feed", len(st.OrderFor(store.RecentView)),
	)
	for _, shelf := range mine {
		items := selectors.OrderedItems(shelf.ShelfID)()
		log.Info("shelf", "id", shelf.ShelfID, "title", shelf.Title, "items", len(items))
	}

	return nil
}

// Command feedsync drives a feed against a running backend: it refreshes,
// scrolls through the feed the way a reader would, applies reactions
// concurrently and prints the reconciled state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/HammerMeetNail/feedsync/internal/client"
	"github.com/HammerMeetNail/feedsync/internal/config"
	"github.com/HammerMeetNail/feedsync/internal/feed"
	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/models"
)

type options struct {
	client      client.Config
	pageSize    int
	lookahead   int
	maxItems    int
	concurrency int
	debug       bool
	react       []reactionArg
	unreact     []reactionArg
}

// reactionArg is an item:kind pair from the command line. For --unreact the
// second half may also be a reaction id.
type reactionArg struct {
	itemID string
	value  string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logging.Error("feedsync failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	opts, err := parseOptions(args, cfg)
	if err != nil {
		return err
	}

	logger := logging.New()
	if opts.debug {
		logger.SetLevel(logging.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(ctx, opts.client)
	f, err := feed.New(feed.Options[models.Activity]{
		Accessor:  feed.ActivityAccessor,
		List:      api,
		Reactions: api,
		Notifier:  feed.NewLogNotifier(logger),
		User:      feed.StaticUser(opts.client.UserID),
		PageSize:  opts.pageSize,
		Lookahead: opts.lookahead,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating feed: %w", err)
	}
	defer f.Close()

	if err := runSession(ctx, f, opts, logger); err != nil {
		return err
	}
	printState(logger, f)
	return nil
}

func parseOptions(args []string, defaults config.ClientConfig) (options, error) {
	opts := options{
		client: client.Config{
			BaseURL: defaults.BaseURL,
			Token:   defaults.Token,
			UserID:  defaults.UserID,
			Timeout: defaults.Timeout,
		},
		pageSize:    defaults.PageSize,
		lookahead:   defaults.Lookahead,
		concurrency: 4,
	}
	var react, unreact []string

	flagSet := pflag.NewFlagSet("feedsync", pflag.ContinueOnError)
	flagSet.StringVar(&opts.client.BaseURL, "base-url", opts.client.BaseURL, "backend base URL")
	flagSet.StringVar(&opts.client.Token, "token", opts.client.Token, "bearer ID token")
	flagSet.StringVar(&opts.client.UserID, "user", opts.client.UserID, "user id sent in the dev auth header")
	flagSet.DurationVar(&opts.client.Timeout, "timeout", opts.client.Timeout, "per-request timeout")
	flagSet.IntVar(&opts.pageSize, "page-size", opts.pageSize, "items requested per page")
	flagSet.IntVar(&opts.lookahead, "lookahead", opts.lookahead, "load the next page this many items before the end")
	flagSet.IntVar(&opts.maxItems, "max-items", 0, "stop scrolling after this many items (0 scrolls to the end)")
	flagSet.IntVar(&opts.concurrency, "concurrency", opts.concurrency, "reactions sent at once")
	flagSet.StringArrayVar(&react, "react", nil, "add a reaction, as item:kind (repeatable)")
	flagSet.StringArrayVar(&unreact, "unreact", nil, "remove a reaction, as item:kind or item:reactionId (repeatable)")
	flagSet.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if opts.pageSize <= 0 {
		return options{}, fmt.Errorf("--page-size must be positive, got %d", opts.pageSize)
	}
	if opts.concurrency <= 0 {
		opts.concurrency = 1
	}

	var err error
	if opts.react, err = parseReactionArgs("--react", react); err != nil {
		return options{}, err
	}
	if opts.unreact, err = parseReactionArgs("--unreact", unreact); err != nil {
		return options{}, err
	}
	return opts, nil
}

func parseReactionArgs(flag string, raw []string) ([]reactionArg, error) {
	args := make([]reactionArg, 0, len(raw))
	for _, r := range raw {
		item, value, ok := strings.Cut(r, ":")
		if !ok || item == "" || value == "" {
			return nil, fmt.Errorf("%s %q: expected item:value", flag, r)
		}
		args = append(args, reactionArg{itemID: item, value: value})
	}
	return args, nil
}

// runSession refreshes, scrolls and then applies every requested reaction.
func runSession(ctx context.Context, f *feed.Feed[models.Activity], opts options, logger *logging.Logger) error {
	if outcome := f.Refresh(ctx); outcome != feed.FetchLoaded {
		return fmt.Errorf("initial refresh %s", outcome)
	}

	scroll(f, opts.maxItems)
	logger.Info("Feed loaded", map[string]interface{}{
		"items":    f.Len(),
		"has_more": f.HasMore(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)

	for _, arg := range opts.react {
		g.Go(func() error {
			outcome := f.AddReaction(gctx, arg.itemID, arg.value)
			logger.Info("Reaction added", map[string]interface{}{
				"item_id": arg.itemID,
				"kind":    arg.value,
				"outcome": outcome.String(),
			})
			return nil
		})
	}
	for _, arg := range opts.unreact {
		reaction, ok := findMine(f, arg)
		if !ok {
			logger.Warn("No confirmed reaction to remove", map[string]interface{}{
				"item_id": arg.itemID,
				"match":   arg.value,
			})
			continue
		}
		g.Go(func() error {
			outcome := f.RemoveReaction(gctx, arg.itemID, reaction)
			logger.Info("Reaction removed", map[string]interface{}{
				"item_id":     arg.itemID,
				"reaction_id": reaction.ID,
				"outcome":     outcome.String(),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// scroll observes items in order, letting the trigger load pages as the
// reader approaches the end. Each triggered append is awaited so the next
// observation sees the grown feed.
func scroll(f *feed.Feed[models.Activity], maxItems int) {
	for i := 0; i < f.Len(); i++ {
		if maxItems > 0 && i >= maxItems {
			return
		}
		if f.OnItemObserved(i) {
			f.Wait()
		}
	}
}

func findMine(f *feed.Feed[models.Activity], arg reactionArg) (models.UserReaction, bool) {
	item, ok := f.Find(arg.itemID)
	if !ok {
		return models.UserReaction{}, false
	}
	for _, r := range item.Reactions.Mine {
		if r.IsPending() {
			continue
		}
		if r.ID == arg.value || r.Kind == arg.value {
			return r, true
		}
	}
	return models.UserReaction{}, false
}

func printState(logger *logging.Logger, f *feed.Feed[models.Activity]) {
	for i, item := range f.Items() {
		mine := make([]string, 0, len(item.Reactions.Mine))
		for _, r := range item.Reactions.Mine {
			mine = append(mine, r.Kind+"="+r.ID)
		}
		sort.Strings(mine)
		logger.Info("Item", map[string]interface{}{
			"index":     i,
			"id":        item.ID,
			"user":      item.Username,
			"place":     item.PlaceName,
			"created":   item.CreatedAt.Format(time.RFC3339),
			"reactions": item.Reactions.Totals,
			"mine":      mine,
		})
	}

	cursor := f.Cursor()
	fields := map[string]interface{}{
		"items": f.Len(),
		"pages": cursor.Page,
	}
	if cursor.TotalCount != nil {
		fields["total"] = *cursor.TotalCount
	}
	if dups := f.Duplicates(); len(dups) > 0 {
		fields["duplicates"] = dups
	}
	logger.Info("Feed state", fields)
}

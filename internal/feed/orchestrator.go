package feed

import (
	"context"

	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/models"
)

const DefaultPageSize = 20

type Action int

const (
	ActionRefresh Action = iota
	ActionAppend
)

func (a Action) String() string {
	if a == ActionRefresh {
		return "refresh"
	}
	return "append"
}

// ListEndpoint returns one 1-based page of items.
type ListEndpoint[T any] interface {
	List(ctx context.Context, page, limit int) (models.ListResponse[T], error)
}

type FetchOutcome int

const (
	// FetchSkipped means no request was made: another fetch was in flight or
	// every page is already loaded.
	FetchSkipped FetchOutcome = iota
	FetchLoaded
	FetchFailed
)

func (o FetchOutcome) String() string {
	switch o {
	case FetchSkipped:
		return "skipped"
	case FetchLoaded:
		return "loaded"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Orchestrator runs refresh and append cycles. At most one fetch runs at a
// time per feed.
type Orchestrator[T any] struct {
	store    *Store[T]
	cursor   *Cursor
	loading  *LoadingState
	endpoint ListEndpoint[T]
	notifier Notifier
	limit    int
	logger   *logging.Logger
}

func NewOrchestrator[T any](store *Store[T], cursor *Cursor, loading *LoadingState, endpoint ListEndpoint[T], notifier Notifier, limit int, logger *logging.Logger) *Orchestrator[T] {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if logger == nil {
		logger = logging.Default
	}
	return &Orchestrator[T]{
		store:    store,
		cursor:   cursor,
		loading:  loading,
		endpoint: endpoint,
		notifier: notifier,
		limit:    limit,
		logger:   logger,
	}
}

func (o *Orchestrator[T]) Fetch(ctx context.Context, action Action) FetchOutcome {
	if !o.loading.TryBegin(TagFetching) {
		return FetchSkipped
	}
	defer o.loading.End(TagFetching)

	// A refresh only resets the cursor once page 1 has arrived, so a failed
	// refresh leaves the loaded pages usable.
	page := 1
	if action == ActionAppend {
		if !o.cursor.HasMore(o.store.Len()) {
			return FetchSkipped
		}
		page = o.cursor.NextPage()
	}

	result, err := o.endpoint.List(ctx, page, o.limit)
	if err != nil {
		if ctx.Err() == nil {
			notify(ctx, o.notifier, Notice{
				Op:      "fetch_" + action.String(),
				Message: "Couldn't load feed",
				Page:    page,
				Err:     err,
			})
		}
		return FetchFailed
	}

	if action == ActionRefresh {
		o.store.ReplaceAll(result.Data)
		o.cursor.Reset()
	} else {
		o.store.Append(result.Data)
	}
	o.cursor.Advance(result.Pagination.TotalCount)

	o.logger.Debug("Fetched feed page", map[string]interface{}{
		"action":      action.String(),
		"page":        page,
		"items":       len(result.Data),
		"total_count": result.Pagination.TotalCount,
	})
	return FetchLoaded
}

package feed

import (
	"context"

	"github.com/HammerMeetNail/feedsync/internal/logging"
)

// Notice describes a failure the user should hear about. Notices are fire
// and forget; nothing is returned to the operation that raised one.
type Notice struct {
	Op      string
	Message string
	ItemID  string
	Kind    string
	Page    int
	Err     error
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}

// LogNotifier writes notices as warnings.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	fields := map[string]interface{}{"op": notice.Op}
	if notice.ItemID != "" {
		fields["item_id"] = notice.ItemID
	}
	if notice.Kind != "" {
		fields["kind"] = notice.Kind
	}
	if notice.Page > 0 {
		fields["page"] = notice.Page
	}
	if notice.Err != nil {
		fields["error"] = notice.Err.Error()
	}
	n.logger.Warn(notice.Message, fields)
}

// UserProvider returns the id of the signed-in user.
type UserProvider interface {
	CurrentUserID() string
}

type StaticUser string

func (u StaticUser) CurrentUserID() string {
	return string(u)
}

func notify(ctx context.Context, n Notifier, notice Notice) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Notifier panicked", map[string]interface{}{"op": notice.Op, "panic": r})
		}
	}()
	n.Notify(ctx, notice)
}

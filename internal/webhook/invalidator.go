package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrUnauthorized       = errors.New("invalid revalidation secret")
	ErrInvalidationFailed = errors.New("cache invalidation failed")
)

type State int

const (
	StateReceived State = iota
	StateValidated
	StateDispatched
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateValidated:
		return "VALIDATED"
	case StateDispatched:
		return "DISPATCHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Notification is one backend change event.
type Notification struct {
	Secret string
	Topic  string
}

type Result struct {
	State       State
	Topic       string
	Tags        []string
	Revalidated bool
	Evicted     int
	Now         time.Time
}

// TagInvalidator evicts every cached read carrying a tag.
type TagInvalidator interface {
	Invalidate(ctx context.Context, tag string) (int, error)
}

var topicTags = map[string][]string{
	"collections/create": {"collections"},
	"collections/update": {"collections"},
	"collections/delete": {"collections"},
	"products/create":    {"products"},
	"products/update":    {"products"},
	"products/delete":    {"products"},
}

// TagsForTopic returns the cache tags a topic invalidates; nil for unmapped topics.
func TagsForTopic(topic string) []string {
	return topicTags[topic]
}

type Invalidator struct {
	secret []byte
	cache  TagInvalidator
	logger *slog.Logger
	now    func() time.Time
}

func NewInvalidator(secret string, cache TagInvalidator, logger *slog.Logger) *Invalidator {
	return &Invalidator{
		secret: []byte(secret),
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

func (i *Invalidator) authorized(secret string) bool {
	if len(i.secret) == 0 || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare(i.secret, []byte(secret)) == 1
}

// Handle validates n and evicts the tags its topic maps to. Unmapped topics are
// acknowledged without eviction. Only a bad secret or a failing cache is an error.
func (i *Invalidator) Handle(ctx context.Context, n Notification) (Result, error) {
	res := Result{State: StateReceived, Topic: n.Topic, Now: i.now()}

	if !i.authorized(n.Secret) {
		i.logger.WarnContext(ctx, "rejected revalidation request", slog.String("topic", n.Topic))
		return res, ErrUnauthorized
	}
	res.State = StateValidated

	res.Tags = TagsForTopic(n.Topic)
	if len(res.Tags) == 0 {
		i.logger.DebugContext(ctx, "ignoring revalidation topic", slog.String("topic", n.Topic))
		return res, nil
	}

	for _, tag := range res.Tags {
		evicted, err := i.cache.Invalidate(ctx, tag)
		if err != nil {
			i.logger.ErrorContext(ctx, "revalidation failed",
				slog.String("topic", n.Topic), slog.String("tag", tag), slog.Any("error", err))
			return res, fmt.Errorf("%w: %v", ErrInvalidationFailed, err)
		}
		res.Evicted += evicted
	}

	res.State = StateDispatched
	res.Revalidated = true
	i.logger.InfoContext(ctx, "revalidated",
		slog.String("topic", n.Topic), slog.Any("tags", res.Tags), slog.Int("evicted", res.Evicted))
	return res, nil
}

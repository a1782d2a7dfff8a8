package livehook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/coregx/livehook/model"
)

const (
	// DefaultLookupTimeout bounds each enrichment lookup.
	DefaultLookupTimeout = 5 * time.Second

	// UnknownGame is shown when the game name cannot be resolved.
	UnknownGame = "Unknown"

	channelURLBase  = "https://www.twitch.tv/"
	thumbnailWidth  = "1280"
	thumbnailHeight = "720"
)

// Catalog resolves display data used to enrich "went live" messages.
type Catalog interface {
	// GameName returns the name of a game.
	// Returns an error coded ErrCodeNotFound when the catalog has no such game.
	GameName(ctx context.Context, gameID string) (string, error)

	// ProfileImageURL returns the avatar URL of a user by login name.
	ProfileImageURL(ctx context.Context, login string) (string, error)
}

// Sender delivers a rendered message to a chat channel.
type Sender interface {
	Send(ctx context.Context, channelID string, msg model.Message) error
}

// NotificationRouter maps an inbound stream notification to the channels
// that should receive it and renders one message per channel.
//
// Routing never fails as a whole because of a single server: servers
// without a channel binding are logged and skipped, and enrichment lookups
// fall back to defaults.
//
// Thread safety: Safe for concurrent use.
type NotificationRouter struct {
	subscriberRepo SubscriberRepository
	bindingRepo    ChannelBindingRepository
	catalog        Catalog
	logger         Logger
	lookupTimeout  time.Duration
}

// RouterOption is a function that configures a NotificationRouter.
type RouterOption func(*NotificationRouter) error

// NewNotificationRouter creates a new NotificationRouter with the provided options.
//
// Required options:
//   - WithRouterRepositories: subscriber and channel binding repositories
//   - WithRouterCatalog: game/avatar catalog
//   - WithRouterLogger: logger instance
//
// Optional options:
//   - WithRouterLookupTimeout (default: DefaultLookupTimeout)
func NewNotificationRouter(opts ...RouterOption) (*NotificationRouter, error) {
	r := &NotificationRouter{
		lookupTimeout: DefaultLookupTimeout,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply router option", err)
		}
	}

	if r.subscriberRepo == nil || r.bindingRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "repositories are required (use WithRouterRepositories)")
	}
	if r.catalog == nil {
		return nil, NewError(ErrCodeConfiguration, "Catalog is required (use WithRouterCatalog)")
	}
	if r.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithRouterLogger)")
	}

	r.logger = r.logger.With("component", "router")
	return r, nil
}

// WithRouterRepositories sets the repositories used to resolve targets.
func WithRouterRepositories(subscriberRepo SubscriberRepository, bindingRepo ChannelBindingRepository) RouterOption {
	return func(r *NotificationRouter) error {
		if subscriberRepo == nil {
			return fmt.Errorf("subscriberRepo cannot be nil")
		}
		if bindingRepo == nil {
			return fmt.Errorf("bindingRepo cannot be nil")
		}
		r.subscriberRepo = subscriberRepo
		r.bindingRepo = bindingRepo
		return nil
	}
}

// WithRouterCatalog sets the catalog used for game names and avatars.
func WithRouterCatalog(catalog Catalog) RouterOption {
	return func(r *NotificationRouter) error {
		if catalog == nil {
			return fmt.Errorf("catalog cannot be nil")
		}
		r.catalog = catalog
		return nil
	}
}

// WithRouterLogger sets the logger instance. Logger is required.
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *NotificationRouter) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithRouterLookupTimeout bounds each catalog lookup.
func WithRouterLookupTimeout(timeout time.Duration) RouterOption {
	return func(r *NotificationRouter) error {
		if timeout <= 0 {
			return fmt.Errorf("lookup timeout must be positive")
		}
		r.lookupTimeout = timeout
		return nil
	}
}

// liveDetails is the enrichment shared by every target of one notification.
type liveDetails struct {
	stream    model.StreamData
	startedAt time.Time
	game      string
	avatar    string
}

// Route resolves every channel that should receive the notification for
// externalUserID. A user nobody watches yields an empty slice, not an error;
// only a failure to list subscribers is returned.
func (r *NotificationRouter) Route(
	ctx context.Context,
	externalUserID string,
	notification model.StreamNotification,
) ([]model.DeliveryTarget, error) {
	if externalUserID == "" {
		return nil, NewError(ErrCodeValidation, "external user ID is required")
	}

	subs, err := r.subscriberRepo.FindByExternalUser(ctx, externalUserID)
	if err != nil {
		if IsNoData(err) {
			r.logger.Debugf("No subscribers for user %s, notification ignored", externalUserID)
			return []model.DeliveryTarget{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load subscribers", err)
	}

	var live *liveDetails
	if stream, ok := notification.Stream(); ok {
		details := r.enrich(ctx, subs[0].DisplayName, stream)
		live = &details
	}

	targets := make([]model.DeliveryTarget, 0, len(subs))
	for _, sub := range subs {
		binding, err := r.bindingRepo.FindByServer(ctx, sub.ServerID)
		if err != nil {
			if IsNoData(err) {
				gap := NewError(ErrCodeRoutingGap, fmt.Sprintf("server %s has no channel binding", sub.ServerID))
				r.logger.Warnf("Skipping target: user=%s, %v", externalUserID, gap)
			} else {
				r.logger.Errorf("Skipping target, binding lookup failed: user=%s, server=%s, error=%v",
					externalUserID, sub.ServerID, err)
			}
			continue
		}

		targets = append(targets, model.DeliveryTarget{
			ServerID:  sub.ServerID,
			ChannelID: binding.ChannelID,
			Message:   render(sub.DisplayName, live),
		})
	}

	r.logger.Debugf("Routed notification: user=%s, live=%t, subscribers=%d, targets=%d",
		externalUserID, live != nil, len(subs), len(targets))
	return targets, nil
}

// Deliver sends every target independently and reports each outcome.
// A failed send never prevents the remaining sends.
func (r *NotificationRouter) Deliver(ctx context.Context, sender Sender, targets []model.DeliveryTarget) []model.DeliveryResult {
	results := make([]model.DeliveryResult, 0, len(targets))
	for _, target := range targets {
		var err error
		if sendErr := sender.Send(ctx, target.ChannelID, target.Message); sendErr != nil {
			err = NewErrorWithCause(ErrCodeDelivery, fmt.Sprintf("failed to deliver to channel %s", target.ChannelID), sendErr)
			r.logger.Errorf("Delivery failed: server=%s, channel=%s, error=%v", target.ServerID, target.ChannelID, sendErr)
		}
		results = append(results, model.DeliveryResult{Target: target, Err: err})
	}
	return results
}

// Dispatch routes a notification and delivers it.
func (r *NotificationRouter) Dispatch(
	ctx context.Context,
	sender Sender,
	externalUserID string,
	notification model.StreamNotification,
) ([]model.DeliveryResult, error) {
	targets, err := r.Route(ctx, externalUserID, notification)
	if err != nil {
		return nil, err
	}
	return r.Deliver(ctx, sender, targets), nil
}

// enrich performs the once-per-notification lookups. Failures degrade to defaults.
func (r *NotificationRouter) enrich(ctx context.Context, displayName string, stream model.StreamData) liveDetails {
	details := liveDetails{stream: stream, game: UnknownGame}

	startedAt, err := stream.StartedAtTime()
	if err != nil {
		r.degraded("started_at", stream.StartedAt, err)
	} else {
		details.startedAt = startedAt
	}

	if avatar, err := r.lookup(ctx, func(ctx context.Context) (string, error) {
		return r.catalog.ProfileImageURL(ctx, displayName)
	}); err != nil {
		r.degraded("avatar", displayName, err)
	} else {
		details.avatar = avatar
	}

	if stream.GameID != "" {
		game, err := r.lookup(ctx, func(ctx context.Context) (string, error) {
			return r.catalog.GameName(ctx, stream.GameID)
		})
		switch {
		case err != nil:
			r.degraded("game", stream.GameID, err)
		case game != "":
			details.game = game
		}
	}

	return details
}

func (r *NotificationRouter) lookup(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return fn(ctx)
}

func (r *NotificationRouter) degraded(what, key string, cause error) {
	err := NewErrorWithCause(ErrCodeLookupDegraded, fmt.Sprintf("%s lookup for %q failed, using default", what, key), cause)
	r.logger.Warnf("%v", err)
}

// render builds the message for one subscriber. live is nil for "went offline".
func render(displayName string, live *liveDetails) model.Message {
	channelURL := channelURLBase + url.PathEscape(displayName)

	if live == nil {
		return model.Message{
			Content: fmt.Sprintf("%s's stream has ended.\n%s", displayName, channelURL),
		}
	}

	return model.Message{
		Content: fmt.Sprintf("%s is now live!", displayName),
		Embed: &model.Embed{
			Title:        live.stream.Title,
			URL:          channelURL,
			Timestamp:    live.startedAt,
			ImageURL:     live.stream.Thumbnail(thumbnailWidth, thumbnailHeight),
			ThumbnailURL: live.avatar,
			Author: model.EmbedAuthor{
				Name:    displayName,
				IconURL: live.avatar,
			},
			Fields: []model.EmbedField{
				{Name: "Game", Value: live.game},
			},
		},
	}
}

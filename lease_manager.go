package livehook

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jonboulle/clockwork"

	"github.com/coregx/livehook/model"
)

const (
	// DefaultHubTimeout bounds every call to the upstream hub.
	DefaultHubTimeout = 10 * time.Second

	// DefaultTopicTemplate is the hub topic for stream up/down events; %s is the user ID.
	DefaultTopicTemplate = "https://api.twitch.tv/helix/streams?user_id=%s"

	timeLogLayout = time.RFC3339
)

// HubClient talks to the upstream WebSub hub and the user directory behind it.
type HubClient interface {
	// Subscribe posts a subscribe request. accepted is true when the hub answered 202.
	Subscribe(ctx context.Context, req model.HubRequest) (accepted bool, err error)

	// Unsubscribe posts an unsubscribe request. accepted is true when the hub answered 202.
	Unsubscribe(ctx context.Context, req model.HubRequest) (accepted bool, err error)

	// LookupUser resolves a login name to an external user ID.
	// Returns an error coded ErrCodeNotFound when the user does not exist.
	LookupUser(ctx context.Context, name string) (string, error)
}

// LeaseManager owns the subscription lifecycle: it registers subjects with the
// hub, keeps the subscriber/lease pairs in the record store, renews leases and
// releases them again.
//
// Key operations:
//   - Subscribe: create or refresh a (user, server) subscription
//   - Unsubscribe: remove it locally first, then cancel upstream
//   - ListForServer: subscribers of one server
//   - Renew: re-register an existing lease and advance issued_at
//   - BindChannel: choose the channel a server's notifications go to
//
// No lock is held across hub calls; all atomicity lives in SubscriptionStore.
//
// Thread safety: Safe for concurrent use.
type LeaseManager struct {
	subscriberRepo SubscriberRepository
	leaseRepo      LeaseRepository
	bindingRepo    ChannelBindingRepository
	store          SubscriptionStore
	hub            HubClient
	clock          clockwork.Clock
	logger         Logger
	observer       LeaseObserver
	callbackBase   string
	topicTemplate  string
	secret         string
	hubTimeout     time.Duration
}

// LeaseManagerOption is a function that configures a LeaseManager.
type LeaseManagerOption func(*LeaseManager) error

// NewLeaseManager creates a new LeaseManager with the provided options.
//
// Required options:
//   - WithLeaseManagerRepositories: subscriber, lease and binding repositories plus the pair store
//   - WithLeaseManagerHub: upstream hub client
//   - WithLeaseManagerCallbackBase: public base URL of the webhook endpoint
//   - WithLeaseManagerLogger: logger instance
//
// Optional options:
//   - WithLeaseManagerClock (default: real clock)
//   - WithLeaseManagerObserver (default: no-op)
//   - WithLeaseManagerHubTimeout (default: DefaultHubTimeout)
//   - WithLeaseManagerTopicTemplate (default: DefaultTopicTemplate)
//   - WithLeaseManagerSecret (default: none)
//
// Example:
//
//	manager, err := livehook.NewLeaseManager(
//	    livehook.WithLeaseManagerRepositories(repos.Subscriber, repos.Lease, repos.Binding, repos.Store),
//	    livehook.WithLeaseManagerHub(hubClient),
//	    livehook.WithLeaseManagerCallbackBase("https://hooks.example.com"),
//	    livehook.WithLeaseManagerLogger(logger),
//	)
func NewLeaseManager(opts ...LeaseManagerOption) (*LeaseManager, error) {
	lm := &LeaseManager{
		clock:         clockwork.NewRealClock(),
		observer:      &NoOpLeaseObserver{},
		topicTemplate: DefaultTopicTemplate,
		hubTimeout:    DefaultHubTimeout,
	}

	for _, opt := range opts {
		if err := opt(lm); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply lease manager option", err)
		}
	}

	if lm.subscriberRepo == nil || lm.leaseRepo == nil || lm.bindingRepo == nil || lm.store == nil {
		return nil, NewError(ErrCodeConfiguration, "repositories are required (use WithLeaseManagerRepositories)")
	}
	if lm.hub == nil {
		return nil, NewError(ErrCodeConfiguration, "HubClient is required (use WithLeaseManagerHub)")
	}
	if lm.callbackBase == "" {
		return nil, NewError(ErrCodeConfiguration, "callback base URL is required (use WithLeaseManagerCallbackBase)")
	}
	if lm.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLeaseManagerLogger)")
	}

	lm.logger = lm.logger.With("component", "lease-manager")
	return lm, nil
}

// WithLeaseManagerRepositories sets the record store dependencies. All are required.
func WithLeaseManagerRepositories(
	subscriberRepo SubscriberRepository,
	leaseRepo LeaseRepository,
	bindingRepo ChannelBindingRepository,
	store SubscriptionStore,
) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if subscriberRepo == nil {
			return fmt.Errorf("subscriberRepo cannot be nil")
		}
		if leaseRepo == nil {
			return fmt.Errorf("leaseRepo cannot be nil")
		}
		if bindingRepo == nil {
			return fmt.Errorf("bindingRepo cannot be nil")
		}
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}

		lm.subscriberRepo = subscriberRepo
		lm.leaseRepo = leaseRepo
		lm.bindingRepo = bindingRepo
		lm.store = store
		return nil
	}
}

// WithLeaseManagerHub sets the upstream hub client.
func WithLeaseManagerHub(hub HubClient) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if hub == nil {
			return fmt.Errorf("hub cannot be nil")
		}
		lm.hub = hub
		return nil
	}
}

// WithLeaseManagerCallbackBase sets the public base URL under which
// /webhook/{subject_id} is reachable by the hub.
func WithLeaseManagerCallbackBase(baseURL string) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid callback base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("callback base URL must be http or https, got %q", baseURL)
		}
		lm.callbackBase = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithLeaseManagerTopicTemplate sets the hub topic template (one %s for the user ID).
func WithLeaseManagerTopicTemplate(template string) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if strings.Count(template, "%s") != 1 {
			return fmt.Errorf("topic template must contain exactly one %%s")
		}
		lm.topicTemplate = template
		return nil
	}
}

// WithLeaseManagerSecret sets the hub.secret sent with subscribe requests.
func WithLeaseManagerSecret(secret string) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		lm.secret = secret
		return nil
	}
}

// WithLeaseManagerHubTimeout bounds each hub round trip.
func WithLeaseManagerHubTimeout(timeout time.Duration) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if timeout <= 0 {
			return fmt.Errorf("hub timeout must be positive")
		}
		lm.hubTimeout = timeout
		return nil
	}
}

// WithLeaseManagerClock sets the clock used to stamp leases.
func WithLeaseManagerClock(clock clockwork.Clock) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if clock == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		lm.clock = clock
		return nil
	}
}

// WithLeaseManagerLogger sets the logger instance. Logger is required.
func WithLeaseManagerLogger(logger Logger) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		lm.logger = logger
		return nil
	}
}

// WithLeaseManagerObserver sets the lease event observer.
func WithLeaseManagerObserver(observer LeaseObserver) LeaseManagerOption {
	return func(lm *LeaseManager) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		lm.observer = observer
		return nil
	}
}

// SubscribeRequest asks to watch an external user on behalf of a server.
type SubscribeRequest struct {
	ExternalUserID string // Streaming platform user ID (required)
	DisplayName    string // Login name used in messages (required)
	ServerID       string // Owning chat server (required)
	LeaseSeconds   int    // Requested lease, 1..model.MaxLeaseSeconds
}

// Validate checks the request fields.
func (r SubscribeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ExternalUserID, validation.Required),
		validation.Field(&r.DisplayName, validation.Required),
		validation.Field(&r.ServerID, validation.Required),
		validation.Field(&r.LeaseSeconds, validation.Required, validation.Min(1), validation.Max(model.MaxLeaseSeconds)),
	)
}

// SubscribeResult is the acknowledgement of a successful Subscribe.
type SubscribeResult struct {
	Subscriber model.Subscriber
	Lease      model.Lease
	Refreshed  bool // true when the pair already existed
}

// Subscribe registers the external user with the hub and stores the
// subscriber/lease pair. An existing pair is refreshed: the hub call is
// repeated, the display name updated and issued_at reset.
//
// On hub rejection nothing is written. The pair is written in one atomic unit.
func (lm *LeaseManager) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid subscribe request", err)
	}

	refreshed := true
	if _, err := lm.subscriberRepo.Find(ctx, req.ExternalUserID, req.ServerID); err != nil {
		if !IsNoData(err) {
			return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load subscriber", err)
		}
		refreshed = false
	}
	leaseExisted := true
	if _, err := lm.leaseRepo.Load(ctx, req.ExternalUserID); err != nil {
		if !IsNoData(err) {
			return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load lease", err)
		}
		leaseExisted = false
	}

	lease := model.NewLease(req.ExternalUserID, lm.callbackURL(req.ExternalUserID),
		lm.topicURL(req.ExternalUserID), req.LeaseSeconds, lm.clock.Now())
	hubReq := lease.SubscribeRequest()
	hubReq.Secret = lm.secret

	if err := lm.callHub(ctx, lm.hub.Subscribe, hubReq); err != nil {
		lm.logger.Warnf("Subscribe rejected: subject=%s, server=%s, error=%v", req.ExternalUserID, req.ServerID, err)
		return nil, err
	}

	now := lm.clock.Now()
	lease = lease.Renewed(now)
	sub := model.NewSubscriber(req.ExternalUserID, req.DisplayName, req.ServerID, now)

	if err := lm.store.SavePair(ctx, sub, lease); err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to store subscription", err)
	}

	if refreshed {
		lm.logger.Infof("Subscription refreshed: subject=%s, server=%s, name=%s", sub.ExternalUserID, sub.ServerID, sub.DisplayName)
	} else {
		lm.logger.Infof("Subscription created: subject=%s, server=%s, name=%s", sub.ExternalUserID, sub.ServerID, sub.DisplayName)
	}
	// lease events follow the subject's lease, not the (subject, server) pair
	if leaseExisted {
		lm.notify("LeaseRefreshed", lm.observer.LeaseRefreshed(ctx, sub, lease))
	} else {
		lm.notify("LeaseCreated", lm.observer.LeaseCreated(ctx, sub, lease))
	}

	return &SubscribeResult{Subscriber: sub, Lease: lease, Refreshed: refreshed}, nil
}

// UnsubscribeResult describes a completed Unsubscribe.
type UnsubscribeResult struct {
	// Lease is the subject's lease as it was when the subscriber was removed.
	Lease model.Lease

	// Released is false when other servers still watch the subject and the lease was kept.
	Released bool

	// UpstreamErr holds the failure of the upstream unsubscribe, if any.
	// Local state is already removed when it is set.
	UpstreamErr error
}

// Unsubscribe removes the subscriber of an (external user, server) pair.
// Local state is removed first; when that released the subject's lease, the
// hub is asked to cancel it and a failure there is only logged.
//
// Returns an ErrCodeNotFound error when the pair is not subscribed.
func (lm *LeaseManager) Unsubscribe(ctx context.Context, externalUserID, serverID string) (*UnsubscribeResult, error) {
	if externalUserID == "" {
		return nil, NewError(ErrCodeValidation, "external user ID is required")
	}
	if serverID == "" {
		return nil, NewError(ErrCodeValidation, "server ID is required")
	}

	lease, released, err := lm.store.DeletePair(ctx, externalUserID, serverID)
	if err != nil {
		if IsNoData(err) {
			return nil, NewError(ErrCodeNotFound,
				fmt.Sprintf("user %s is not subscribed on server %s", externalUserID, serverID))
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to delete subscription", err)
	}

	result := &UnsubscribeResult{Lease: lease, Released: released}
	if !released {
		lm.logger.Infof("Subscriber removed, lease kept for other servers: subject=%s, server=%s", externalUserID, serverID)
		return result, nil
	}

	if err := lm.callHub(ctx, lm.hub.Unsubscribe, lease.UnsubscribeRequest()); err != nil {
		result.UpstreamErr = err
		lm.logger.Warnf("Upstream unsubscribe failed, local state already removed: subject=%s, error=%v", externalUserID, err)
	}

	lm.logger.Infof("Subscription removed: subject=%s, server=%s", externalUserID, serverID)
	lm.notify("LeaseReleased", lm.observer.LeaseReleased(ctx, lease))

	return result, nil
}

// ListForServer returns the subscribers of a server.
// No subscribers yields an empty slice; a store failure yields an ErrCodeDatabase error.
func (lm *LeaseManager) ListForServer(ctx context.Context, serverID string) ([]model.Subscriber, error) {
	if serverID == "" {
		return nil, NewError(ErrCodeValidation, "server ID is required")
	}

	subs, err := lm.subscriberRepo.FindByServer(ctx, serverID)
	if err != nil {
		if IsNoData(err) {
			return []model.Subscriber{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list subscribers", err)
	}
	return subs, nil
}

// Renew re-registers a stored lease with the hub, reusing its callback,
// topic and lease length, and advances issued_at once the hub accepts.
// On rejection issued_at is left untouched.
func (lm *LeaseManager) Renew(ctx context.Context, subjectID string) (*model.Lease, error) {
	if subjectID == "" {
		return nil, NewError(ErrCodeValidation, "subject ID is required")
	}

	lease, err := lm.leaseRepo.Load(ctx, subjectID)
	if err != nil {
		if IsNoData(err) {
			return nil, NewError(ErrCodeNotFound, fmt.Sprintf("no lease for subject %s", subjectID))
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load lease", err)
	}

	hubReq := lease.SubscribeRequest()
	hubReq.Secret = lm.secret
	if err := lm.callHub(ctx, lm.hub.Subscribe, hubReq); err != nil {
		lm.notify("LeaseRenewalFailed", lm.observer.LeaseRenewalFailed(ctx, subjectID, err))
		return nil, err
	}

	renewed := lease.Renewed(lm.clock.Now())
	if err := lm.leaseRepo.Touch(ctx, subjectID, renewed.IssuedAt); err != nil {
		if IsNoData(err) {
			err = NewError(ErrCodeNotFound, fmt.Sprintf("lease for subject %s removed during renewal", subjectID))
		} else {
			err = NewErrorWithCause(ErrCodeDatabase, "failed to update lease", err)
		}
		lm.notify("LeaseRenewalFailed", lm.observer.LeaseRenewalFailed(ctx, subjectID, err))
		return nil, err
	}

	lm.notify("LeaseRenewed", lm.observer.LeaseRenewed(ctx, renewed))
	return &renewed, nil
}

// ResolveUser looks up the external user ID for a login name.
func (lm *LeaseManager) ResolveUser(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewError(ErrCodeValidation, "user name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, lm.hubTimeout)
	defer cancel()

	id, err := lm.hub.LookupUser(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return "", err
		}
		return "", NewErrorWithCause(ErrCodeUpstreamRejected, fmt.Sprintf("failed to look up user %s", name), err)
	}
	return id, nil
}

// BindChannel makes channelID the notification channel of serverID,
// replacing any previous binding.
func (lm *LeaseManager) BindChannel(ctx context.Context, serverID, channelID string) (model.ChannelBinding, error) {
	if serverID == "" {
		return model.ChannelBinding{}, NewError(ErrCodeValidation, "server ID is required")
	}
	if channelID == "" {
		return model.ChannelBinding{}, NewError(ErrCodeValidation, "channel ID is required")
	}

	saved, err := lm.bindingRepo.Save(ctx, model.NewChannelBinding(serverID, channelID, lm.clock.Now()))
	if err != nil {
		return model.ChannelBinding{}, NewErrorWithCause(ErrCodeDatabase, "failed to save channel binding", err)
	}

	lm.logger.Infof("Channel bound: server=%s, channel=%s", serverID, channelID)
	return saved, nil
}

// Binding returns the channel binding of a server.
func (lm *LeaseManager) Binding(ctx context.Context, serverID string) (model.ChannelBinding, error) {
	binding, err := lm.bindingRepo.FindByServer(ctx, serverID)
	if err != nil {
		if IsNoData(err) {
			return binding, NewError(ErrCodeNotFound, fmt.Sprintf("server %s has no channel binding", serverID))
		}
		return binding, NewErrorWithCause(ErrCodeDatabase, "failed to load channel binding", err)
	}
	return binding, nil
}

// callHub runs one hub round trip under the manager's timeout and maps a
// transport error or a non-202 answer to ErrCodeUpstreamRejected.
func (lm *LeaseManager) callHub(
	ctx context.Context,
	call func(context.Context, model.HubRequest) (bool, error),
	req model.HubRequest,
) error {
	if err := req.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid hub request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, lm.hubTimeout)
	defer cancel()

	accepted, err := call(ctx, req)
	if err != nil {
		return NewErrorWithCause(ErrCodeUpstreamRejected, fmt.Sprintf("hub %s request failed", req.Mode), err)
	}
	if !accepted {
		return NewError(ErrCodeUpstreamRejected, fmt.Sprintf("hub rejected %s for %s", req.Mode, req.Topic))
	}
	return nil
}

func (lm *LeaseManager) callbackURL(subjectID string) string {
	return lm.callbackBase + "/webhook/" + url.PathEscape(subjectID)
}

func (lm *LeaseManager) topicURL(subjectID string) string {
	return fmt.Sprintf(lm.topicTemplate, url.QueryEscape(subjectID))
}

func (lm *LeaseManager) notify(event string, err error) {
	if err != nil {
		lm.logger.Warnf("Lease observer %s failed: %v", event, err)
	}
}

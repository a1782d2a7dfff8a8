package livehook_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/adapters/memory"
	"github.com/coregx/livehook/model"
)

var errBoom = errors.New("boom")

// fakeHub records hub calls. Subjects listed in reject get a non-202 answer.
type fakeHub struct {
	mu       sync.Mutex
	reject   map[string]bool
	failWith error
	users    map[string]string
	calls    []model.HubRequest
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		reject: make(map[string]bool),
		users:  map[string]string{"alice": "1001", "bob": "2002"},
	}
}

func (h *fakeHub) Subscribe(ctx context.Context, req model.HubRequest) (bool, error) {
	return h.answer(ctx, req)
}

func (h *fakeHub) Unsubscribe(ctx context.Context, req model.HubRequest) (bool, error) {
	return h.answer(ctx, req)
}

func (h *fakeHub) answer(_ context.Context, req model.HubRequest) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, req)
	if h.failWith != nil {
		return false, h.failWith
	}
	for subject := range h.reject {
		if strings.HasSuffix(req.Topic, "="+subject) {
			return false, nil
		}
	}
	return true, nil
}

func (h *fakeHub) LookupUser(_ context.Context, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.users[name]
	if !ok {
		return "", livehook.NewError(livehook.ErrCodeNotFound, "no such user "+name)
	}
	return id, nil
}

func (h *fakeHub) setReject(subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reject[subject] = true
}

func (h *fakeHub) requests(mode model.HubMode) []model.HubRequest {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []model.HubRequest
	for _, c := range h.calls {
		if c.Mode == mode {
			out = append(out, c)
		}
	}
	return out
}

// blockingHub never answers before ctx is done.
type blockingHub struct{ *fakeHub }

func (h *blockingHub) Subscribe(ctx context.Context, _ model.HubRequest) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

// recordingLogger keeps formatted entries for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries *[]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{entries: &[]string{}}
}

func (l *recordingLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) { l.add("DEBUG", format, args...) }
func (l *recordingLogger) Infof(format string, args ...interface{})  { l.add("INFO", format, args...) }
func (l *recordingLogger) Warnf(format string, args ...interface{})  { l.add("WARN", format, args...) }
func (l *recordingLogger) Errorf(format string, args ...interface{}) { l.add("ERROR", format, args...) }
func (l *recordingLogger) Info(message string)                       { l.add("INFO", "%s", message) }
func (l *recordingLogger) With(_, _ string) livehook.Logger          { return l }

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// failingStore fails every paired write.
type failingStore struct{}

func (failingStore) SavePair(context.Context, model.Subscriber, model.Lease) error {
	return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to save", errBoom)
}

func (failingStore) DeletePair(context.Context, string, string) (model.Lease, bool, error) {
	return model.Lease{}, false, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to delete", errBoom)
}

// failingSubscribers fails every subscriber read.
type failingSubscribers struct{}

func (failingSubscribers) Find(context.Context, string, string) (model.Subscriber, error) {
	return model.Subscriber{}, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to load", errBoom)
}

func (failingSubscribers) FindByServer(context.Context, string) ([]model.Subscriber, error) {
	return nil, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to list", errBoom)
}

func (failingSubscribers) FindByExternalUser(context.Context, string) ([]model.Subscriber, error) {
	return nil, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to list", errBoom)
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type managerFixture struct {
	repos   *memory.Repositories
	hub     *fakeHub
	clock   *clockwork.FakeClock
	logger  *recordingLogger
	manager *livehook.LeaseManager
}

func newManagerFixture(t *testing.T, opts ...livehook.LeaseManagerOption) *managerFixture {
	t.Helper()

	f := &managerFixture{
		repos:  memory.NewRepositories(),
		hub:    newFakeHub(),
		clock:  clockwork.NewFakeClockAt(epoch),
		logger: newRecordingLogger(),
	}

	base := []livehook.LeaseManagerOption{
		livehook.WithLeaseManagerRepositories(f.repos.Subscriber, f.repos.Lease, f.repos.Binding, f.repos.Store),
		livehook.WithLeaseManagerHub(f.hub),
		livehook.WithLeaseManagerCallbackBase("https://hooks.example.com/"),
		livehook.WithLeaseManagerClock(f.clock),
		livehook.WithLeaseManagerLogger(f.logger),
	}

	manager, err := livehook.NewLeaseManager(append(base, opts...)...)
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *managerFixture) subscribe(t *testing.T, userID, name, serverID string, leaseSeconds int) *livehook.SubscribeResult {
	t.Helper()

	res, err := f.manager.Subscribe(context.Background(), livehook.SubscribeRequest{
		ExternalUserID: userID,
		DisplayName:    name,
		ServerID:       serverID,
		LeaseSeconds:   leaseSeconds,
	})
	require.NoError(t, err)
	return res
}

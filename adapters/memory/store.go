// Package memory provides an in-process record store for livehook.
//
// Every repository shares one mutex, so conflicting writes are serialized
// exactly as the SQL store serializes them with transactions. Nothing is
// persisted: it backs tests and DB_DRIVER=memory development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

type pairKey struct {
	externalUserID string
	serverID       string
}

// Store implements every livehook repository interface in memory.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	subscribers map[pairKey]model.Subscriber
	bindings    map[string]model.ChannelBinding
	leases      map[string]model.Lease
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		subscribers: make(map[pairKey]model.Subscriber),
		bindings:    make(map[string]model.ChannelBinding),
		leases:      make(map[string]model.Lease),
	}
}

// Repositories mirrors relica.Repositories so callers can swap stores.
type Repositories struct {
	Subscriber livehook.SubscriberRepository
	Binding    livehook.ChannelBindingRepository
	Lease      livehook.LeaseRepository
	Store      livehook.SubscriptionStore
}

// NewRepositories returns a fresh Store exposed through every interface.
func NewRepositories() *Repositories {
	s := NewStore()
	return &Repositories{
		Subscriber: SubscriberView{s},
		Binding:    BindingView{s},
		Lease:      LeaseView{s},
		Store:      s,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SavePair upserts the subscriber and the lease under one lock.
func (s *Store) SavePair(_ context.Context, sub model.Subscriber, lease model.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{sub.ExternalUserID, sub.ServerID}
	if existing, ok := s.subscribers[key]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = s.id()
	}
	if existing, ok := s.leases[lease.SubjectID]; ok {
		lease.ID = existing.ID
	} else {
		lease.ID = s.id()
	}

	s.subscribers[key] = sub
	s.leases[lease.SubjectID] = lease
	return nil
}

// DeletePair removes the subscriber and, if it was the last for its subject, the lease.
func (s *Store) DeletePair(_ context.Context, externalUserID, serverID string) (model.Lease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{externalUserID, serverID}
	if _, ok := s.subscribers[key]; !ok {
		return model.Lease{}, false, livehook.ErrNoData
	}
	delete(s.subscribers, key)

	lease, ok := s.leases[externalUserID]
	if !ok {
		return model.Lease{}, false, nil
	}
	for k := range s.subscribers {
		if k.externalUserID == externalUserID {
			return lease, false, nil
		}
	}
	delete(s.leases, externalUserID)
	return lease, true, nil
}

// SubscriberView exposes a Store as livehook.SubscriberRepository.
type SubscriberView struct{ s *Store }

func (v SubscriberView) Find(_ context.Context, externalUserID, serverID string) (model.Subscriber, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	sub, ok := v.s.subscribers[pairKey{externalUserID, serverID}]
	if !ok {
		return model.Subscriber{}, livehook.ErrNoData
	}
	return sub, nil
}

func (v SubscriberView) FindByServer(_ context.Context, serverID string) ([]model.Subscriber, error) {
	return v.filter(func(s model.Subscriber) bool { return s.ServerID == serverID })
}

func (v SubscriberView) FindByExternalUser(_ context.Context, externalUserID string) ([]model.Subscriber, error) {
	return v.filter(func(s model.Subscriber) bool { return s.ExternalUserID == externalUserID })
}

func (v SubscriberView) filter(match func(model.Subscriber) bool) ([]model.Subscriber, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var subs []model.Subscriber
	for _, sub := range v.s.subscribers {
		if match(sub) {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		return nil, livehook.ErrNoData
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

// BindingView exposes a Store as livehook.ChannelBindingRepository.
type BindingView struct{ s *Store }

func (v BindingView) FindByServer(_ context.Context, serverID string) (model.ChannelBinding, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	binding, ok := v.s.bindings[serverID]
	if !ok {
		return model.ChannelBinding{}, livehook.ErrNoData
	}
	return binding, nil
}

func (v BindingView) Save(_ context.Context, m model.ChannelBinding) (model.ChannelBinding, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if existing, ok := v.s.bindings[m.ServerID]; ok {
		m.ID = existing.ID
	} else {
		m.ID = v.s.id()
	}
	v.s.bindings[m.ServerID] = m
	return m, nil
}

// LeaseView exposes a Store as livehook.LeaseRepository.
type LeaseView struct{ s *Store }

func (v LeaseView) Load(_ context.Context, subjectID string) (model.Lease, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	lease, ok := v.s.leases[subjectID]
	if !ok {
		return model.Lease{}, livehook.ErrNoData
	}
	return lease, nil
}

func (v LeaseView) FindAll(_ context.Context) ([]model.Lease, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	if len(v.s.leases) == 0 {
		return nil, livehook.ErrNoData
	}
	leases := make([]model.Lease, 0, len(v.s.leases))
	for _, lease := range v.s.leases {
		leases = append(leases, lease)
	}
	sort.Slice(leases, func(i, j int) bool { return leases[i].IssuedAt.Before(leases[j].IssuedAt) })
	return leases, nil
}

func (v LeaseView) Touch(_ context.Context, subjectID string, issuedAt time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	lease, ok := v.s.leases[subjectID]
	if !ok {
		return livehook.ErrNoData
	}
	v.s.leases[subjectID] = lease.Renewed(issuedAt)
	return nil
}

package relica

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "livehook.db") + "?_txlock=immediate&_busy_timeout=5000"
	require.NoError(t, Migrate("sqlite3", dsn, nil))

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLease(subjectID string, leaseSeconds int, issued time.Time) model.Lease {
	return model.NewLease(subjectID, "https://hooks.example.com/webhook/"+subjectID,
		"https://api.twitch.tv/helix/streams?user_id="+subjectID, leaseSeconds, issued)
}

func TestMigrate_Idempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "livehook.db")

	require.NoError(t, Migrate("sqlite3", dsn, nil))
	require.NoError(t, Migrate("sqlite3", dsn, nil))
}

func TestMigrate_UnsupportedDriver(t *testing.T) {
	err := Migrate("oracle", "whatever", nil)

	require.Error(t, err)
}

func TestSubscriptionStore_SavePair(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := model.NewSubscriber("1001", "alice", "S1", issued)
	require.NoError(t, repos.Store.SavePair(ctx, sub, testLease("1001", 300, issued)))

	got, err := repos.Subscriber.Find(ctx, "1001", "S1")
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.Equal(t, "alice", got.DisplayName)

	lease, err := repos.Lease.Load(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 300, lease.LeaseSeconds)
	assert.True(t, issued.Equal(lease.IssuedAt))
}

func TestSubscriptionStore_SavePairRefreshesInPlace(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	later := issued.Add(time.Hour)

	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", "S1", issued), testLease("1001", 300, issued)))
	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice_renamed", "S1", later), testLease("1001", 300, later)))

	subs, err := repos.Subscriber.FindByServer(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "alice_renamed", subs[0].DisplayName)

	leases, err := repos.Lease.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.True(t, later.Equal(leases[0].IssuedAt))
}

func TestSubscriptionStore_SavePairRollsBack(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name  string
		breakDB func(t *testing.T, db *sql.DB)
		lease model.Lease
	}{
		{
			name:  "lease write fails",
			breakDB: func(*testing.T, *sql.DB) {},
			// lease_seconds violates the CHECK constraint
			lease: testLease("1001", 0, now),
		},
		{
			name: "subscriber write fails after the lease was written",
			breakDB: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec("DROP TABLE livehook_subscriber")
				require.NoError(t, err)
			},
			lease: testLease("1001", 300, now),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			repos := NewRepositories(db, "sqlite3")
			tt.breakDB(t, db)

			err := repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", "S1", now), tt.lease)
			require.Error(t, err)
			assert.True(t, livehook.IsStoreFailure(err))

			_, err = repos.Lease.Load(ctx, "1001")
			assert.True(t, livehook.IsNoData(err), "lease must not survive a failed pair write")
		})
	}
}

func TestSubscriptionStore_SavePairRecreatesReleasedLease(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := NewRepositories(db, "sqlite3")
	now := time.Now().UTC()

	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", "S1", now), testLease("1001", 300, now)))
	// another server's release removed the lease between our check and our write
	_, err := db.Exec("DELETE FROM livehook_lease WHERE subject_id = ?", "1001")
	require.NoError(t, err)

	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", "S2", now), testLease("1001", 600, now)))

	lease, err := repos.Lease.Load(ctx, "1001")
	require.NoError(t, err, "every subscriber keeps a lease")
	assert.Equal(t, 600, lease.LeaseSeconds)
}

func TestSubscriptionStore_ConcurrentPairWrites(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	now := time.Now().UTC()
	const servers = 8

	var wg sync.WaitGroup
	errs := make(chan error, servers)
	for i := 0; i < servers; i++ {
		wg.Add(1)
		go func(server string) {
			defer wg.Done()
			errs <- repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", server, now), testLease("1001", 300, now))
		}(fmt.Sprintf("S%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	leases, err := repos.Lease.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, leases, 1)

	var releases int
	var mu sync.Mutex
	for i := 0; i < servers; i++ {
		wg.Add(1)
		go func(server string) {
			defer wg.Done()
			_, released, err := repos.Store.DeletePair(ctx, "1001", server)
			assert.NoError(t, err)
			if released {
				mu.Lock()
				releases++
				mu.Unlock()
			}
		}(fmt.Sprintf("S%d", i))
	}
	wg.Wait()

	assert.Equal(t, 1, releases, "exactly the last removal releases the lease")
	_, err = repos.Lease.Load(ctx, "1001")
	assert.True(t, livehook.IsNoData(err), "no orphaned lease")
}

func TestSubscriptionStore_DeletePair(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	now := time.Now().UTC()

	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", "S1", now), testLease("1001", 300, now)))

	lease, released, err := repos.Store.DeletePair(ctx, "1001", "S1")
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, "1001", lease.SubjectID)
	assert.Equal(t, "https://hooks.example.com/webhook/1001", lease.CallbackURL)

	_, err = repos.Subscriber.Find(ctx, "1001", "S1")
	assert.True(t, livehook.IsNoData(err))
	_, err = repos.Lease.Load(ctx, "1001")
	assert.True(t, livehook.IsNoData(err))
}

func TestSubscriptionStore_DeletePairKeepsSharedLease(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	now := time.Now().UTC()

	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("2002", "bob", "S1", now), testLease("2002", 300, now)))
	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("2002", "bob", "S2", now), testLease("2002", 300, now)))

	_, released, err := repos.Store.DeletePair(ctx, "2002", "S1")
	require.NoError(t, err)
	assert.False(t, released)

	_, err = repos.Lease.Load(ctx, "2002")
	require.NoError(t, err, "S2 still watches bob")

	subs, err := repos.Subscriber.FindByExternalUser(ctx, "2002")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "S2", subs[0].ServerID)
}

func TestSubscriptionStore_DeletePairNotFound(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")

	_, _, err := repos.Store.DeletePair(ctx, "nobody", "S1")

	assert.True(t, livehook.IsNoData(err))
}

func TestSubscriberRepository_NoRows(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")

	_, err := repos.Subscriber.FindByServer(ctx, "S1")
	assert.True(t, livehook.IsNoData(err))

	_, err = repos.Subscriber.FindByExternalUser(ctx, "1001")
	assert.True(t, livehook.IsNoData(err))

	_, err = repos.Lease.FindAll(ctx)
	assert.True(t, livehook.IsNoData(err))
}

func TestSubscriberRepository_StoreFailureIsNotNoData(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db, "sqlite3")
	require.NoError(t, db.Close())

	_, err := repos.Subscriber.FindByServer(context.Background(), "S1")

	require.Error(t, err)
	assert.False(t, livehook.IsNoData(err))
	assert.True(t, livehook.IsStoreFailure(err))
}

func TestLeaseRepository_Touch(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	renewed := issued.Add(48 * time.Hour)

	require.NoError(t, repos.Store.SavePair(ctx, model.NewSubscriber("1001", "alice", "S1", issued), testLease("1001", 300, issued)))

	require.NoError(t, repos.Lease.Touch(ctx, "1001", renewed))
	lease, err := repos.Lease.Load(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, renewed.Equal(lease.IssuedAt))

	err = repos.Lease.Touch(ctx, "missing", renewed)
	assert.True(t, livehook.IsNoData(err))
}

func TestChannelBindingRepository_SaveAndOverwrite(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	now := time.Now().UTC()

	_, err := repos.Binding.FindByServer(ctx, "S1")
	require.True(t, livehook.IsNoData(err))

	first, err := repos.Binding.Save(ctx, model.NewChannelBinding("S1", "C1", now))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "C1", first.ChannelID)

	// a fresh value without ID overwrites by server
	second, err := repos.Binding.Save(ctx, model.NewChannelBinding("S1", "C2", now.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	rebound, err := repos.Binding.FindByServer(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "C2", rebound.ChannelID)
}

func TestChannelBindingRepository_ConcurrentSave(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(newTestDB(t), "sqlite3")
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			_, err := repos.Binding.Save(ctx, model.NewChannelBinding("S1", channel, now))
			assert.NoError(t, err)
		}(fmt.Sprintf("C%d", i))
	}
	wg.Wait()

	binding, err := repos.Binding.FindByServer(ctx, "S1")
	require.NoError(t, err)
	assert.Contains(t, []string{"C0", "C1", "C2", "C3"}, binding.ChannelID)
}

func TestUpsertSuffix(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "ON CONFLICT (server_id) DO UPDATE SET channel_id = excluded.channel_id, bound_at = excluded.bound_at"},
		{"sqlite3", "ON CONFLICT (server_id) DO UPDATE SET channel_id = excluded.channel_id, bound_at = excluded.bound_at"},
		{"mysql", "ON DUPLICATE KEY UPDATE channel_id = VALUES(channel_id), bound_at = VALUES(bound_at)"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			assert.Equal(t, tt.want, upsertSuffix(tt.driver, []string{"server_id"}, "channel_id", "bound_at"))
		})
	}

	assert.Equal(t, "FOR UPDATE", lockSuffix("postgres"))
	assert.Equal(t, "FOR UPDATE", lockSuffix("mysql"))
	assert.Empty(t, lockSuffix("sqlite3"))
}

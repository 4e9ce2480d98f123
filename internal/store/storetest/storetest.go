// Package storetest opens migrated in-memory stores for tests.
package storetest

import (
	"sync"
	"testing"
	"time"

	"tariconnect/database"
	"tariconnect/internal/store"

	"github.com/stretchr/testify/require"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t.UTC()} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// New returns a store over a private in-memory SQLite database.
func New(t *testing.T, clock *Clock) *store.Store {
	t.Helper()

	db, err := database.Open("file::memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return store.New(db, store.WithClock(clock.Now))
}

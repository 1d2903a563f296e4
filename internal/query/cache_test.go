package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// spyStore records invalidations on top of a MemoryStore.
type spyStore struct {
	*MemoryStore
	mu      sync.Mutex
	deleted []string
	getErr  error
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: NewMemoryStore()}
}

func (s *spyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *spyStore) DeletePrefix(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	return s.MemoryStore.DeletePrefix(ctx, key)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "courses:42:enrollments", CourseEnrollmentsKey("42").String())
	assert.Equal(t, "courses", CourseKey("42").Root())
	assert.True(t, CourseKey("42").HasPrefix(KeyCourses))
	assert.True(t, TeacherCoursesKey("t1").HasPrefix(KeyCourses))
	assert.False(t, Key{"courses-archive"}.HasPrefix(KeyCourses))
	assert.False(t, KeyCourses.HasPrefix(CourseKey("42")))
	assert.True(t, StudentCoursesKey("s1").HasPrefix(KeyStudentCourses))
}

func TestFetch_CachesResult(t *testing.T) {
	c := New(nil, Config{})
	ctx := context.Background()
	var calls int

	fetch := func(context.Context) ([]item, error) {
		calls++
		return []item{{ID: "1", Title: "Go"}}, nil
	}

	first, err := Fetch(ctx, c, KeyCourses, fetch)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, KeyCourses, fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	// callers get independent copies
	first[0].Title = "changed"
	third, err := Fetch(ctx, c, KeyCourses, fetch)
	require.NoError(t, err)
	assert.Equal(t, "Go", third[0].Title)
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	c := New(nil, Config{})
	ctx := context.Background()
	boom := errors.New("boom")
	var calls int

	_, err := Fetch(ctx, c, KeyTeachers, func(context.Context) ([]item, error) {
		calls++
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := Fetch(ctx, c, KeyTeachers, func(context.Context) ([]item, error) {
		calls++
		return []item{{ID: "t1"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, calls)
}

func TestFetch_DeduplicatesConcurrentCalls(t *testing.T) {
	c := New(nil, Config{})
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fetch := func(context.Context) (item, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return item{ID: "1"}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]item, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = Fetch(ctx, c, CourseKey("1"), fetch)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(ctx, c, CourseKey("1"), fetch)
		}(i)
	}

	// give followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "1", results[i].ID)
	}
}

func TestInvalidate_Prefix(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, Config{})
	ctx := context.Background()

	for _, key := range []Key{KeyCourses, CourseKey("1"), CourseEnrollmentsKey("1"), KeyTeachers, {"courses-archive"}} {
		_, err := Fetch(ctx, c, key, func(context.Context) (string, error) { return "v", nil })
		require.NoError(t, err)
	}
	require.Equal(t, 5, store.Len())

	require.NoError(t, c.Invalidate(ctx, KeyCourses))

	assert.Equal(t, 2, store.Len())
	_, err := store.Get(ctx, KeyTeachers.String())
	assert.NoError(t, err)
	_, err = store.Get(ctx, "courses-archive")
	assert.NoError(t, err)
	_, err = store.Get(ctx, CourseEnrollmentsKey("1").String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_InvalidatedInFlightIsNotStored(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, Config{})
	ctx := context.Background()

	got, err := Fetch(ctx, c, CourseKey("1"), func(ctx context.Context) (item, error) {
		// a mutation lands while the read is in flight
		require.NoError(t, c.Invalidate(ctx, KeyCourses))
		return item{ID: "1", Title: "stale"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", got.Title, "in-flight caller still gets its result")

	_, err = store.Get(ctx, CourseKey("1").String())
	assert.ErrorIs(t, err, ErrNotFound, "result must not be cached")

	// the next read refetches and caches again
	var calls int
	_, err = Fetch(ctx, c, CourseKey("1"), func(context.Context) (item, error) {
		calls++
		return item{ID: "1", Title: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.Len())
}

// racingStore runs beforeSet ahead of the first write it sees.
type racingStore struct {
	*MemoryStore
	once      sync.Once
	beforeSet func()
}

func (s *racingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.once.Do(s.beforeSet)
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func TestFetch_InvalidatedDuringWriteIsNotStored(t *testing.T) {
	store := &racingStore{MemoryStore: NewMemoryStore()}
	c := New(store, Config{})
	ctx := context.Background()

	// the invalidation lands after the in-flight check but before the write
	store.beforeSet = func() {
		require.NoError(t, c.Invalidate(ctx, KeyCourses))
	}

	got, err := Fetch(ctx, c, KeyCourses, func(context.Context) (string, error) { return "stale", nil })
	require.NoError(t, err)
	assert.Equal(t, "stale", got)

	var calls int
	got, err = Fetch(ctx, c, KeyCourses, func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "fresh", got)
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New(nil, Config{})

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetch := func(ctx context.Context) (item, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return item{}, err
		}
		return item{ID: "1"}, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(firstCtx, c, CourseKey("1"), fetch)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   item
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, CourseKey("1"), fetch)
		follower <- result{v, err}
	}()

	// give the follower time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "1", res.v.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMutate_InvalidatesOnlyOnSuccess(t *testing.T) {
	store := newSpyStore()
	c := New(store, Config{})
	ctx := context.Background()

	_, err := Mutate(ctx, c, func(context.Context) (string, error) {
		return "", errors.New("rejected")
	}, KeyCourses)
	require.Error(t, err)
	assert.Empty(t, store.deleted)

	out, err := Mutate(ctx, c, func(context.Context) (string, error) {
		return "ok", nil
	}, KeyCourses, StudentCoursesKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"courses", "student-courses:s1"}, store.deleted)
}

func TestFetch_StoreReadErrorFallsBackToFetch(t *testing.T) {
	store := newSpyStore()
	store.getErr = errors.New("connection refused")
	c := New(store, Config{})

	got, err := Fetch(context.Background(), c, KeyStudents, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestPurge(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, Config{})
	ctx := context.Background()

	_, err := Fetch(ctx, c, KeyCourses, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = Fetch(ctx, c, StudentCoursesKey("s1"), func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)

	require.NoError(t, c.Purge(ctx))
	assert.Zero(t, store.Len())
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}

package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/infra"
	"go.uber.org/zap"
)

type fakeSettings struct{ rows []domain.SettingValue }

func (f fakeSettings) GetSettings(context.Context, ...string) ([]domain.SettingValue, error) {
	return f.rows, nil
}

type fakeLogs struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeLogs) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 12, f.err
}

type fakeLocker struct {
	held map[string]bool
	ttl  time.Duration
	err  error
}

func (l *fakeLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.ttl = ttl
	return true, nil
}

var now = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func newCleaner(rows []domain.SettingValue, logs *fakeLogs, locker *fakeLocker) *Cleaner {
	c := NewCleaner(fakeSettings{rows: rows}, logs, locker, time.Hour, zap.NewNop())
	c.now = func() time.Time { return now }
	return c
}

func TestRunOnce_UsesConfiguredRetention(t *testing.T) {
	logs := &fakeLogs{}
	locker := &fakeLocker{held: map[string]bool{}}
	c := newCleaner([]domain.SettingValue{{Key: domain.SettingDataRetentionDays, Value: float64(30)}}, logs, locker)

	n, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, []time.Time{time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}, logs.cutoffs)
	assert.True(t, locker.held[infra.RedisKeyLockRetention])
	assert.Equal(t, 54*time.Minute, locker.ttl)

	// Второй инстанс пропускает проход
	n, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, logs.cutoffs, 1)
}

// expiringLocker ведёт себя как SetNX с TTL по управляемым часам.
type expiringLocker struct {
	clock   *time.Time
	expires map[string]time.Time
}

func (l *expiringLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if exp, ok := l.expires[key]; ok && l.clock.Before(exp) {
		return false, nil
	}
	l.expires[key] = l.clock.Add(ttl)
	return true, nil
}

func TestRunOnce_ConsecutiveTicksBothRun(t *testing.T) {
	clock := now
	logs := &fakeLogs{}
	c := newCleaner(nil, logs, nil)
	c.locker = &expiringLocker{clock: &clock, expires: map[string]time.Time{}}

	// Первый проход стартует чуть позже тика, следующий - чуть раньше
	clock = now.Add(5 * time.Millisecond)
	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	clock = now.Add(time.Hour + time.Millisecond)
	_, err = c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, logs.cutoffs, 2)

	// Второй инстанс внутри того же интервала пропускает проход
	clock = now.Add(time.Hour + 2*time.Millisecond)
	_, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, logs.cutoffs, 2)
}

func TestRunOnce_DefaultRetention(t *testing.T) {
	logs := &fakeLogs{}
	c := newCleaner(nil, logs, &fakeLocker{held: map[string]bool{}})

	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -90), logs.cutoffs[0])
}

func TestRunOnce_Errors(t *testing.T) {
	_, err := newCleaner(nil, &fakeLogs{}, &fakeLocker{err: errors.New("redis down")}).RunOnce(context.Background())
	assert.Error(t, err)

	_, err = newCleaner(nil, &fakeLogs{err: domain.ErrStoreUnavailable}, &fakeLocker{held: map[string]bool{}}).RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStart_StopsOnCancel(t *testing.T) {
	logs := &fakeLogs{}
	c := newCleaner(nil, logs, &fakeLocker{held: map[string]bool{}})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}

package future

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

// countingExecutor runs tasks on a fresh goroutine and counts submissions.
type countingExecutor struct {
	submitted atomic.Int64
}

func (e *countingExecutor) Submit(task func()) {
	e.submitted.Add(1)
	go task()
}

func TestCompleteOnlyOnce(t *testing.T) {
	t.Parallel()

	f, complete := New[int]()
	complete(1, nil)
	complete(2, errors.New("late"))

	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCompleteConcurrently(t *testing.T) {
	t.Parallel()

	f, complete := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			complete(i, nil)
		}()
	}
	wg.Wait()

	_, err := f.Result()
	require.NoError(t, err)
}

func TestAwait(t *testing.T) {
	t.Parallel()

	t.Run("value", func(t *testing.T) {
		t.Parallel()

		f := Go(context.Background(), func(context.Context) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "OK", nil
		})
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "OK", v)
	})

	t.Run("context_done_first", func(t *testing.T) {
		t.Parallel()

		f, _ := New[string]()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := f.Await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestThen(t *testing.T) {
	t.Parallel()

	ex := &countingExecutor{}
	src := Go(context.Background(), func(context.Context) (int, error) { return 20, nil })

	out := Then(ex, src, func(v int) *Future[int] {
		return Go(context.Background(), func(context.Context) (int, error) { return v + 1, nil })
	})

	v, err := out.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21, v)
	assert.Equal(t, int64(1), ex.submitted.Load(), "continuation must run on the executor")
}

func TestThenSkipsOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	called := false

	out := Then(Inline, Failed[int](boom), func(int) *Future[int] {
		called = true
		return Completed(0)
	})

	_, err := out.Result()
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestMap(t *testing.T) {
	t.Parallel()

	out := Map(Inline, Completed([]byte("OK")), func(b []byte) (string, error) {
		return string(b), nil
	})
	v, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, "OK", v)

	bad := errors.New("decode")
	failed := Map(Inline, Completed(1), func(int) (string, error) { return "", bad })
	_, err = failed.Result()
	assert.ErrorIs(t, err, bad)
}

func TestHandleSeesFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("SMTP down")
	var seen error

	out := Handle(Inline, Failed[string](boom), func(_ string, err error) (string, error) {
		seen = err
		return "APPROVED", nil
	})

	v, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", v)
	assert.ErrorIs(t, seen, boom)
}

func TestStartRunsOnExecutor(t *testing.T) {
	t.Parallel()

	ex := &countingExecutor{}
	out := Start(ex, func() *Future[int] { return Completed(7) })

	v, err := out.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int64(1), ex.submitted.Load())
}

// Callbacks registered before and after completion must all fire.
func TestCallbacksBeforeAndAfterCompletion(t *testing.T) {
	t.Parallel()

	f, complete := New[int]()
	early := Map(Inline, f, func(v int) (int, error) { return v * 2, nil })
	complete(4, nil)
	late := Map(Inline, f, func(v int) (int, error) { return v * 3, nil })

	v, err := early.Result()
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	v, err = late.Result()
	require.NoError(t, err)
	assert.Equal(t, 12, v)
}

// A panicking stage fails its future instead of leaving it pending.
func TestPanickingStageCompletesWithError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  func(Executor) *Future[int]
	}{
		{name: "go", run: func(Executor) *Future[int] {
			return Go(context.Background(), func(context.Context) (int, error) { panic("ledger bug") })
		}},
		{name: "start", run: func(ex Executor) *Future[int] {
			return Start(ex, func() *Future[int] { panic("ledger bug") })
		}},
		{name: "then", run: func(ex Executor) *Future[int] {
			return Then(ex, Completed(1), func(int) *Future[int] { panic("ledger bug") })
		}},
		{name: "map", run: func(ex Executor) *Future[int] {
			return Map(ex, Completed(1), func(int) (int, error) { panic("ledger bug") })
		}},
		{name: "handle", run: func(ex Executor) *Future[int] {
			return Handle(ex, Completed(1), func(int, error) (int, error) { panic("ledger bug") })
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			_, err := tt.run(&countingExecutor{}).Await(ctx)
			require.ErrorIs(t, err, ErrPanicked)
			assert.Contains(t, err.Error(), "ledger bug")
		})
	}
}

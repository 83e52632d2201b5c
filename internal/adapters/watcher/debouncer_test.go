package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/adapters/watcher"
)

func TestDebouncer_Add_SinglePath(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var callCount int
		var receivedPaths []string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			callCount++
			receivedPaths = paths
		})

		d.Add("/envs/opence-env.yaml")

		// Advance time past the debounce window
		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, 1, callCount)
		assert.Equal(t, []string{"/envs/opence-env.yaml"}, receivedPaths)
	})
}

func TestDebouncer_Add_CoalescesAndSorts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var callCount int
		var receivedPaths []string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			callCount++
			receivedPaths = paths
		})

		// Add multiple paths within the debounce window, out of order.
		d.Add("/repos/numpy-feedstock/recipe/meta.yaml")
		d.Add("/envs/opence-env.yaml")
		d.Add("/repos/numpy-feedstock/recipe/build.sh")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		// One callback with the whole batch, in sorted order.
		require.Equal(t, 1, callCount)
		assert.Equal(t, []string{
			"/envs/opence-env.yaml",
			"/repos/numpy-feedstock/recipe/build.sh",
			"/repos/numpy-feedstock/recipe/meta.yaml",
		}, receivedPaths)
	})
}

func TestDebouncer_Add_DuplicatePaths(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var callCount int
		var receivedPaths []string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			callCount++
			receivedPaths = paths
		})

		// Add the same path multiple times
		d.Add("/envs/opence-env.yaml")
		d.Add("/envs/opence-env.yaml")
		d.Add("/envs/opence-env.yaml")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, 1, callCount)
		assert.Equal(t, []string{"/envs/opence-env.yaml"}, receivedPaths)
	})
}

func TestDebouncer_Add_TimerReset(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var callCount int
		var mu sync.Mutex

		d := watcher.NewDebouncer(100*time.Millisecond, func([]string) {
			mu.Lock()
			callCount++
			mu.Unlock()
		})

		// First add starts the timer
		d.Add("/repos/numpy-feedstock/recipe/meta.yaml")
		time.Sleep(50 * time.Millisecond)

		// Second add resets the timer
		d.Add("/repos/numpy-feedstock/recipe/build.sh")
		time.Sleep(50 * time.Millisecond)

		// At this point (100ms from first add), if timer wasn't reset,
		// the callback would have fired. But it should not have fired yet.
		synctest.Wait()
		mu.Lock()
		count := callCount
		mu.Unlock()
		assert.Equal(t, 0, count)

		// Wait for the reset timer to fire
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()

		mu.Lock()
		count = callCount
		mu.Unlock()
		require.Equal(t, 1, count)
	})
}

func TestDebouncer_Add_SeparateBursts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var callCount int
		var receivedPaths []string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			callCount++
			receivedPaths = paths
		})

		d.Add("/envs/opence-env.yaml")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, 1, callCount)
		require.Equal(t, []string{"/envs/opence-env.yaml"}, receivedPaths)

		// A second burst after the first fired gets its own callback.
		d.Add("/repos/numpy-feedstock/recipe/meta.yaml")
		d.Add("/repos/scipy-feedstock/recipe/meta.yaml")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, 2, callCount)
		assert.Equal(t, []string{
			"/repos/numpy-feedstock/recipe/meta.yaml",
			"/repos/scipy-feedstock/recipe/meta.yaml",
		}, receivedPaths)
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(_ *testing.T) {
		d := watcher.NewDebouncer(50*time.Millisecond, nil)

		// Should not panic when the window expires.
		d.Add("/envs/opence-env.yaml")
		d.Add("/repos/numpy-feedstock/recipe/meta.yaml")

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
	})
}

// Property-based tests for per-key locking.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that concurrent read-modify-write
// sequences under the same key give the same result as sequential execution.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		userID := fmt.Sprintf("user-%d", rapid.IntRange(1, 1000000).Draw(t, "userID"))
		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(userID)
				defer ul.Unlock(userID)
				current := balance
				balance = current + amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch with locking: expected %d, got %d", expected, balance)
		}
	})
}

// TestWithLockCapacityProperty models the draw capacity check: with N slots
// and M concurrent joiners, exactly min(N, M) joins succeed.
func TestWithLockCapacityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.Int64Range(1, 20).Draw(t, "capacity")
		joiners := rapid.IntRange(1, 40).Draw(t, "joiners")

		dl := NewDrawLock()
		var current int64
		var accepted atomic.Int64

		var wg sync.WaitGroup
		wg.Add(joiners)
		for i := 0; i < joiners; i++ {
			go func() {
				defer wg.Done()
				_ = dl.WithLockContext(context.Background(), 1, 10*time.Second, func() error {
					if current >= capacity {
						return nil
					}
					current++
					accepted.Add(1)
					return nil
				})
			}()
		}
		wg.Wait()

		want := capacity
		if int64(joiners) < want {
			want = int64(joiners)
		}
		if accepted.Load() != want || current != want {
			t.Fatalf("capacity %d joiners %d: accepted %d, current %d", capacity, joiners, accepted.Load(), current)
		}
	})
}

// TestMultipleKeysIndependentLocksProperty checks that different keys do not
// share state.
func TestMultipleKeysIndependentLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 10).Draw(t, "numUsers")
		opsPerUser := rapid.IntRange(5, 20).Draw(t, "opsPerUser")

		ul := NewUserLock()
		balances := make(map[string]*int64, numUsers)
		for i := 0; i < numUsers; i++ {
			b := rapid.Int64Range(1000, 10000).Draw(t, "initialBalance")
			balances[fmt.Sprintf("u%d", i)] = &b
		}
		expected := make(map[string]int64, numUsers)
		for id, b := range balances {
			expected[id] = *b + int64(opsPerUser)*10
		}

		var wg sync.WaitGroup
		wg.Add(numUsers * opsPerUser)
		for id := range balances {
			for j := 0; j < opsPerUser; j++ {
				go func(uid string) {
					defer wg.Done()
					ul.Lock(uid)
					defer ul.Unlock(uid)
					*balances[uid] += 10
				}(id)
			}
		}
		wg.Wait()

		for id, b := range balances {
			if *b != expected[id] {
				t.Fatalf("user %s balance mismatch: expected %d, got %d", id, expected[id], *b)
			}
		}
	})
}

// TestLockUnlockSymmetryProperty checks that balanced Lock/Unlock cycles
// leave the key free and the table empty.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		drawID := rapid.Int64Range(1, 1000000).Draw(t, "drawID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		dl := NewDrawLock()
		for i := 0; i < numCycles; i++ {
			dl.Lock(drawID)
			dl.Unlock(drawID)
		}

		if !dl.LockWithTimeout(context.Background(), drawID, 50*time.Millisecond) {
			t.Fatal("lock should be available after symmetric lock/unlock cycles")
		}
		dl.Unlock(drawID)
		if n := tableSize(dl); n != 0 {
			t.Fatalf("lock table should be empty, has %d entries", n)
		}
	})
}

func tableSize[K comparable](l *KeyLock[K]) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestLockWithTimeoutHeldKey(t *testing.T) {
	ctx := context.Background()
	ul := NewUserLock()
	ul.Lock("alice")

	assert.False(t, ul.LockWithTimeout(ctx, "alice", 20*time.Millisecond))
	assert.True(t, ul.LockWithTimeout(ctx, "bob", 20*time.Millisecond))

	ul.Unlock("bob")
	ul.Unlock("alice")

	// The abandoned waiter takes and hands back alice's mutex in the background.
	assert.Eventually(t, func() bool { return tableSize(ul) == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, ul.LockWithTimeout(ctx, "alice", 100*time.Millisecond))
	ul.Unlock("alice")
}

func TestWithLockContextTimeout(t *testing.T) {
	ul := NewUserLock()
	ul.Lock("alice")

	called := false
	err := ul.WithLockContext(context.Background(), "alice", 20*time.Millisecond, func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)

	ul.Unlock("alice")

	err = ul.WithLockContext(context.Background(), "alice", time.Second, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithLockContextCancelled(t *testing.T) {
	ul := NewUserLock()
	ul.Lock("alice")
	defer ul.Unlock("alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ul.WithLockContext(ctx, "alice", time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

package signalr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsTasks(t *testing.T) {
	s := newDefaultScheduler()
	defer s.Close()

	var wg sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		s.Schedule(func() {
			count.Add(1)
			wg.Done()
		}, 0)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("tasks did not run")
	}
	assert.Equal(t, int32(20), count.Load())
}

func TestSchedulerHonorsDelay(t *testing.T) {
	s := newDefaultScheduler()
	defer s.Close()

	start := time.Now()
	ran := make(chan time.Duration, 1)
	s.Schedule(func() { ran <- time.Since(start) }, 100*time.Millisecond)

	select {
	case elapsed := <-ran:
		assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	case <-time.After(testTimeout):
		t.Fatal("delayed task did not run")
	}
}

func TestSchedulerSwallowsPanics(t *testing.T) {
	s := newDefaultScheduler()
	defer s.Close()

	ran := make(chan struct{})
	s.Schedule(func() { panic("task panic") }, 0)
	s.Schedule(func() { close(ran) }, 0)

	select {
	case <-ran:
	case <-time.After(testTimeout):
		t.Fatal("scheduler died after a panicking task")
	}
}

func TestSchedulerCloseDrainsQueue(t *testing.T) {
	s := newDefaultScheduler()

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		s.Schedule(func() { count.Add(1) }, 10*time.Millisecond)
	}
	s.Close()
	assert.Equal(t, int32(5), count.Load())

	// Scheduling after close is dropped, not queued.
	s.Schedule(func() { count.Add(1) }, 0)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(5), count.Load())
}

func TestTimerStopsWhenTickReturnsTrue(t *testing.T) {
	s := newDefaultScheduler()
	defer s.Close()

	var ticks atomic.Int32
	done := make(chan struct{})
	runTimer(s, func(elapsed time.Duration) bool {
		if ticks.Add(1) == 3 {
			close(done)
			return true
		}
		return false
	})

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("timer did not reach three ticks")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), ticks.Load(), "timer kept ticking after returning true")
}

func TestTimerReportsElapsedTime(t *testing.T) {
	s := newDefaultScheduler()
	defer s.Close()

	done := make(chan time.Duration, 1)
	start := time.Now()
	runTimer(s, func(elapsed time.Duration) bool {
		if elapsed >= 60*time.Millisecond {
			done <- time.Since(start)
			return true
		}
		return false
	})

	select {
	case total := <-done:
		assert.GreaterOrEqual(t, total, 60*time.Millisecond)
	case <-time.After(testTimeout):
		t.Fatal("timer never observed the elapsed threshold")
	}
}

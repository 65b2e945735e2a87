// timer/timer.go
package timer

import (
	"sync"
	"time"
)

// Interval converts a rate in Hz to a tick interval. Non-positive rates yield zero.
func Interval(hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}

// Task 周期任务：固定间隔调用回调，可独立启动与停止
//
// The interval is wall-clock based and not corrected for drift; a slow callback delays
// the next tick instead of queueing extra ones.
type Task struct {
	interval time.Duration
	callback func()

	mutex sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func NewTask(interval time.Duration, callback func()) *Task {
	return &Task{
		interval: interval,
		callback: callback,
	}
}

// Start launches the loop. It returns false if the task is already running or the
// interval is not positive.
func (t *Task) Start() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.stop != nil || t.interval <= 0 {
		return false
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
	return true
}

// Stop ends the loop and waits for an in-flight callback to return. It returns false
// if the task was not running. Stop must not be called from the callback.
func (t *Task) Stop() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.stop == nil {
		return false
	}
	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
	return true
}

func (t *Task) Running() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stop != nil
}

func (t *Task) Interval() time.Duration {
	return t.interval
}

func (t *Task) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.callback()
		case <-stop:
			return
		}
	}
}

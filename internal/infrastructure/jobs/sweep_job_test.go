package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeRunner struct {
	calls int32
	err   error
}

func (f *fakeRunner) Run(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return 1, f.err
}

func TestSweepJob_RunsOnInterval(t *testing.T) {
	runner := &fakeRunner{}
	job := NewSweepJob("test", runner, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop on context cancel")
	}
	assert.Greater(t, int(atomic.LoadInt32(&runner.calls)), 0)
}

func TestSweepJob_StopsByStopChannel(t *testing.T) {
	runner := &fakeRunner{}
	job := NewSweepJob("test", runner, time.Millisecond)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()
	job.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop on Stop()")
	}
}

func TestSweepJob_SurvivesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	job := NewSweepJob("test", runner, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}

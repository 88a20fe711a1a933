package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLaneFull is returned when a key's queue has no free slot.
var ErrLaneFull = errors.New("worker: lane full")

// DefaultIdle is how long a lane waits for work before it is reaped.
const DefaultIdle = 5 * time.Minute

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
	// WG, when set, is released when the loop exits.
	WG *sync.WaitGroup
	// Idle, when positive, calls OnIdle after that long without a job.
	// The loop exits if OnIdle returns true.
	Idle   time.Duration
	OnIdle func() bool
}

// Start runs jobs from opts.Jobs one at a time; each job holds a slot of opts.Sem while it runs.
func Start[J any](opts StartOptions[J]) {
	if opts.WG != nil {
		opts.WG.Add(1)
	}
	go func() {
		if opts.WG != nil {
			defer opts.WG.Done()
		}
		var idle <-chan time.Time
		var timer *time.Timer
		if opts.Idle > 0 && opts.OnIdle != nil {
			timer = time.NewTimer(opts.Idle)
			defer timer.Stop()
			idle = timer.C
		}
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case <-idle:
				if opts.OnIdle() {
					return
				}
				timer.Reset(opts.Idle)
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				func() {
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
				if timer != nil {
					timer.Reset(opts.Idle)
				}
			}
		}
	}()
}

// Lanes keeps one ordered queue per key. Jobs with the same key never run
// concurrently; at most cap(sem) jobs run at once across all keys. A lane
// with no work for Idle is removed and recreated on the next job.
type Lanes[K comparable, J any] struct {
	ctx    context.Context
	sem    chan struct{}
	handle func(context.Context, J)
	buffer int

	// Idle is read when a lane is created; set it before the first Enqueue.
	Idle time.Duration

	mu    sync.Mutex
	lanes map[K]chan J
	wg    sync.WaitGroup
}

func NewLanes[K comparable, J any](ctx context.Context, workers, buffer int, handle func(context.Context, J)) *Lanes[K, J] {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 16
	}
	return &Lanes[K, J]{
		ctx:    ctx,
		sem:    make(chan struct{}, workers),
		handle: handle,
		buffer: buffer,
		Idle:   DefaultIdle,
		lanes:  make(map[K]chan J),
	}
}

// Enqueue never blocks: a full lane yields ErrLaneFull, so one busy key
// cannot hold up the others.
func (l *Lanes[K, J]) Enqueue(key K, job J) error {
	if err := l.ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.lanes[key]
	if !ok {
		ch = make(chan J, l.buffer)
		l.lanes[key] = ch
		Start(StartOptions[J]{
			Ctx:    l.ctx,
			Sem:    l.sem,
			Jobs:   ch,
			Handle: l.handle,
			WG:     &l.wg,
			Idle:   l.Idle,
			OnIdle: func() bool { return l.reap(key, ch) },
		})
	}
	select {
	case ch <- job:
		return nil
	default:
		return ErrLaneFull
	}
}

// reap drops an empty lane. Sends happen under mu, so nothing is lost.
func (l *Lanes[K, J]) reap(key K, ch chan J) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(ch) > 0 {
		return false
	}
	if l.lanes[key] == ch {
		delete(l.lanes, key)
	}
	return true
}

// Len returns the number of live lanes.
func (l *Lanes[K, J]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

// Wait blocks until every lane loop has exited; loops exit when the Lanes context is done.
func (l *Lanes[K, J]) Wait() {
	l.wg.Wait()
}

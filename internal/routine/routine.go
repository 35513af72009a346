package routine

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Routine is a long lived task of the relay
type Routine func(ctx context.Context) error

// Task is a short lived job spawned by a routine (i.e. a fan out)
type Task func(ctx context.Context)

// State is the state of a routine
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

type routineTracker struct {
	stoppedCh chan struct{}
	state     State
}

func (r *routineTracker) wait() {
	<-r.stoppedCh
}

type Manager struct {
	logger    hclog.Logger
	lock      sync.Mutex
	instances map[string]*routineTracker
	routines  map[string]Routine
	ctx       context.Context
	cancelFn  context.CancelFunc

	// tasks tracks the running tasks
	tasks sync.WaitGroup
}

func NewManager(logger hclog.Logger) *Manager {
	m := &Manager{
		logger:    logger.Named("routine-manager"),
		routines:  map[string]Routine{},
		instances: map[string]*routineTracker{},
	}
	return m
}

func (m *Manager) Add(name string, routine Routine) {
	m.routines[name] = routine
}

func (m *Manager) Start(ctx context.Context) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rtCtx, cancel := context.WithCancel(ctx)
	m.ctx = rtCtx
	m.cancelFn = cancel

	for name, routine := range m.routines {
		instance := &routineTracker{
			stoppedCh: make(chan struct{}),
			state:     StateRunning,
		}

		go m.execute(rtCtx, name, routine, instance)
		m.instances[name] = instance

		m.logger.Debug("started routine", "routine", name)
	}
}

func (m *Manager) execute(ctx context.Context, name string, routine Routine, instance *routineTracker) {
	defer func() {
		close(instance.stoppedCh)
	}()

	err := routine(ctx)

	m.lock.Lock()
	defer m.lock.Unlock()

	if err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		m.logger.Error("routine exited with error",
			"routine", name,
			"error", err,
		)
		instance.state = StateFailed
	} else {
		m.logger.Info("stopped routine", "routine", name)
		instance.state = StateStopped
	}
}

// Go runs a task under the context of the manager. It returns false
// if the manager is not running.
func (m *Manager) Go(task Task) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.ctx == nil || m.ctx.Err() != nil {
		return false
	}

	m.tasks.Add(1)
	go func(ctx context.Context) {
		defer m.tasks.Done()
		task(ctx)
	}(m.ctx)

	return true
}

// Status returns the state of every routine
func (m *Manager) Status() map[string]State {
	m.lock.Lock()
	defer m.lock.Unlock()

	res := map[string]State{}
	for name, instance := range m.instances {
		res[name] = instance.state
	}
	return res
}

// Stop cancels the routines and waits for them and
// for the running tasks
func (m *Manager) Stop() {
	m.lock.Lock()
	if m.cancelFn == nil {
		m.lock.Unlock()
		return
	}
	m.cancelFn()
	instances := m.instances
	m.lock.Unlock()

	for _, instance := range instances {
		instance.wait()
	}
	m.tasks.Wait()
}

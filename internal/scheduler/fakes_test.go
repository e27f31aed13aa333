package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
)

type memSets struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	failAdd error
}

func newMemSets() *memSets {
	return &memSets{sets: map[string]map[string]struct{}{}}
}

func (m *memSets) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd != nil {
		return m.failAdd
	}
	set, ok := m.sets[key]
	if !ok {
		set = map[string]struct{}{}
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *memSets) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memSets) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range members {
		delete(m.sets[key], member)
	}
	if len(m.sets[key]) == 0 {
		delete(m.sets, key)
	}
	return nil
}

func (m *memSets) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.sets, key)
	}
	return nil
}

func (m *memSets) ScheduleGroupKey(group string) string { return "llms:schedule:group:" + group }

func (m *memSets) ScheduleGroupsKey() string { return "llms:schedule:groups" }

// memQueue stands in for both the asynq client and inspector.
type memQueue struct {
	mu         sync.Mutex
	tasks      map[string]*asynq.TaskInfo
	enqueueErr error
	deleteErr  map[string]error
	lastOpts   []asynq.Option
}

func newMemQueue() *memQueue {
	return &memQueue{tasks: map[string]*asynq.TaskInfo{}, deleteErr: map[string]error{}}
}

func (q *memQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	info := &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStateScheduled}
	for _, opt := range opts {
		switch opt.Type() {
		case asynq.TaskIDOpt:
			info.ID = opt.Value().(string)
		case asynq.QueueOpt:
			info.Queue = opt.Value().(string)
		case asynq.ProcessAtOpt:
			info.NextProcessAt = opt.Value().(time.Time)
		}
	}
	if _, exists := q.tasks[info.ID]; exists {
		return nil, asynq.ErrTaskIDConflict
	}
	q.lastOpts = opts
	q.tasks[info.ID] = info
	return info, nil
}

func (q *memQueue) DeleteTask(_ string, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err, ok := q.deleteErr[id]; ok {
		return err
	}
	info, ok := q.tasks[id]
	if !ok {
		return asynq.ErrTaskNotFound
	}
	if info.State == asynq.TaskStateActive {
		return errors.New("cannot delete task in active state")
	}
	delete(q.tasks, id)
	return nil
}

func (q *memQueue) GetTaskInfo(_ string, id string) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.tasks[id]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	copied := *info
	return &copied, nil
}

func (q *memQueue) setState(id string, state asynq.TaskState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks[id].State = state
}

func (q *memQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

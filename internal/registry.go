package internal

import (
	"context"

	"github.com/samber/lo"
)

type task struct {
	id     uint64
	cancel context.CancelFunc
}

// Registry maps each active container to the cancel func of its tailer.
// It is owned by the pod watch loop and is not safe for concurrent use.
type Registry struct {
	tasks map[TaskKey]task
	seq   uint64
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[TaskKey]task)}
}

func (r *Registry) Has(key TaskKey) bool {
	_, ok := r.tasks[key]
	return ok
}

// Add stores cancel under key and returns the id identifying this entry.
func (r *Registry) Add(key TaskKey, cancel context.CancelFunc) uint64 {
	r.seq++
	r.tasks[key] = task{id: r.seq, cancel: cancel}
	return r.seq
}

// CancelPod cancels and removes every entry of the pod and returns the
// affected keys.
func (r *Registry) CancelPod(pod string) []TaskKey {
	keys := lo.Filter(lo.Keys(r.tasks), func(k TaskKey, _ int) bool {
		return k.Pod == pod
	})
	for _, key := range keys {
		r.tasks[key].cancel()
		delete(r.tasks, key)
	}
	return keys
}

// Release drops the entry for key if it still belongs to the tailer with id.
func (r *Registry) Release(key TaskKey, id uint64) bool {
	t, ok := r.tasks[key]
	if !ok || t.id != id {
		return false
	}
	t.cancel()
	delete(r.tasks, key)
	return true
}

func (r *Registry) CancelAll() {
	for key, t := range r.tasks {
		t.cancel()
		delete(r.tasks, key)
	}
}

func (r *Registry) Len() int {
	return len(r.tasks)
}

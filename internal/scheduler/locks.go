package scheduler

import (
	"sort"
	"sync"
)

// PathLockManager serializes access to target file paths across concurrent
// task handlers. Two generation tasks can legitimately resolve to the same
// entry-point file, so every file write holds the path's lock.
type PathLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPathLockManager() *PathLockManager {
	return &PathLockManager{locks: make(map[string]*sync.Mutex)}
}

func (m *PathLockManager) lockFor(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[path]
	if !ok {
		l = &sync.Mutex{}
		m.locks[path] = l
	}
	return l
}

func (m *PathLockManager) Lock(path string) {
	m.lockFor(path).Lock()
}

func (m *PathLockManager) Unlock(path string) {
	m.lockFor(path).Unlock()
}

// LockAll acquires multiple paths in sorted order so two holders with
// overlapping sets cannot deadlock.
func (m *PathLockManager) LockAll(paths []string) []string {
	ordered := make([]string, len(paths))
	copy(ordered, paths)
	sort.Strings(ordered)
	for _, p := range ordered {
		m.Lock(p)
	}
	return ordered
}

// UnlockAll releases paths in reverse acquisition order.
func (m *PathLockManager) UnlockAll(ordered []string) {
	for i := len(ordered) - 1; i >= 0; i-- {
		m.Unlock(ordered[i])
	}
}

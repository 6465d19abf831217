package workflow

import (
	"sync"

	"github.com/google/uuid"
)

// taskGuard admits one in-flight call per task within this process.
type taskGuard struct {
	mu     sync.Mutex
	active map[uuid.UUID]string
}

func newTaskGuard() *taskGuard {
	return &taskGuard{active: make(map[uuid.UUID]string)}
}

// acquire marks id busy with op. It fails fast with the op already running.
func (g *taskGuard) acquire(id uuid.UUID, op string) (release func(), running string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, busy := g.active[id]; busy {
		return nil, current, false
	}
	g.active[id] = op
	return func() {
		g.mu.Lock()
		delete(g.active, id)
		g.mu.Unlock()
	}, "", true
}

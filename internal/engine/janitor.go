package engine

import (
	"time"

	"github.com/MimeLyc/subtrans-engine/pkg/icron"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

// JanitorStatus describes the terminal-task eviction schedule and its last
// outcome.
type JanitorStatus struct {
	Enabled     bool      `json:"enabled"`
	Expression  string    `json:"expression,omitempty"`
	Retention   string    `json:"retention"`
	LastRun     time.Time `json:"last_run"`
	LastEvicted int       `json:"last_evicted"`
	NextRun     time.Time `json:"next_run"`
}

// runJanitor evicts terminal tasks older than the retention window. Evicted
// tasks disappear from listings and their stored data is removed.
func (e *Engine) runJanitor() {
	cutoff := time.Now().Add(-e.retention)
	evicted := e.registry.EvictTerminalBefore(cutoff)

	e.mu.Lock()
	e.lastJanitor = time.Now()
	e.lastEvicted = len(evicted)
	e.mu.Unlock()

	if len(evicted) > 0 {
		log.Info("Evicted %d terminal tasks older than %s", len(evicted), e.retention)
	}
}

// JanitorStatus reports the eviction schedule, its last run and the next
// planned one.
func (e *Engine) JanitorStatus() JanitorStatus {
	e.mu.Lock()
	lastRun := e.lastJanitor
	lastEvicted := e.lastEvicted
	e.mu.Unlock()

	status := JanitorStatus{
		Enabled:     e.evictionCron != "",
		Expression:  e.evictionCron,
		Retention:   e.retention.String(),
		LastRun:     lastRun,
		LastEvicted: lastEvicted,
	}
	if status.Enabled {
		if info, err := icron.GetTriggerInfo(e.evictionCron, time.Now()); err == nil {
			status.NextRun = info.Next
		}
	}
	return status
}

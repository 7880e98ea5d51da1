package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats is sampled from the operating system by the monitoring worker.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSMb      uint64  `json:"rss_mb"`
	SampledAt  string  `json:"sampled_at"`
}

type QueueStats struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// Stats aggregates every metric exposed on /stats
type Stats struct {
	// --- REALTIME ---
	ActiveConnections int64  `json:"active_connections"`
	ActiveGroups      int    `json:"active_groups"`
	Broadcasts        uint64 `json:"broadcasts"`
	Deliveries        uint64 `json:"deliveries"`
	FailedDeliveries  uint64 `json:"failed_deliveries"`
	PrunedConnections uint64 `json:"pruned_connections"`

	// --- MESSAGES ---
	MessagesCreated uint64 `json:"messages_created"`
	MessagesEdited  uint64 `json:"messages_edited"`
	MessagesDeleted uint64 `json:"messages_deleted"`
	RejectedEvents  uint64 `json:"rejected_events"`
	DroppedIndexing uint64 `json:"dropped_indexing"`

	// --- SYSTEM ---
	AllocMemMb    uint64                `json:"alloc_mem_mb"`
	NumGC         uint32                `json:"num_gc"`
	NumGoroutines int                   `json:"num_goroutines"`
	Queues        map[string]QueueStats `json:"queues"`
	Process       ProcessStats          `json:"process"`
	Uptime        string                `json:"uptime"`
}

// Monitor collects counters from the hot path without locking.
// A nil *Monitor is valid and records nothing.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time

	activeConnections atomic.Int64
	broadcasts        atomic.Uint64
	deliveries        atomic.Uint64
	failedDeliveries  atomic.Uint64
	pruned            atomic.Uint64
	created           atomic.Uint64
	edited            atomic.Uint64
	deleted           atomic.Uint64
	rejected          atomic.Uint64
	droppedIndexing   atomic.Uint64

	mu          sync.RWMutex
	process     ProcessStats
	queues      map[string]QueueStats
	groupsCount func() int
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, startedAt: time.Now(), queues: make(map[string]QueueStats)}
}

// TrackGroups installs the provider of the number of live group channels.
func (m *Monitor) TrackGroups(count func() int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupsCount = count
}

func (m *Monitor) ConnectionOpened() {
	if m != nil {
		m.activeConnections.Add(1)
	}
}

func (m *Monitor) ConnectionClosed() {
	if m != nil {
		m.activeConnections.Add(-1)
	}
}

func (m *Monitor) Broadcast(delivered, failed int) {
	if m == nil {
		return
	}
	m.broadcasts.Add(1)
	m.deliveries.Add(uint64(delivered))
	m.failedDeliveries.Add(uint64(failed))
}

func (m *Monitor) Pruned(n int) {
	if m != nil {
		m.pruned.Add(uint64(n))
	}
}

func (m *Monitor) MessageCreated() {
	if m != nil {
		m.created.Add(1)
	}
}

func (m *Monitor) MessageEdited() {
	if m != nil {
		m.edited.Add(1)
	}
}

func (m *Monitor) MessageDeleted() {
	if m != nil {
		m.deleted.Add(1)
	}
}

func (m *Monitor) EventRejected() {
	if m != nil {
		m.rejected.Add(1)
	}
}

func (m *Monitor) IndexingDropped() {
	if m != nil {
		m.droppedIndexing.Add(1)
	}
}

func (m *Monitor) UpdateProcess(stats ProcessStats) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.process = stats
}

func (m *Monitor) UpdateQueue(name string, length, capacity int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[name] = QueueStats{Length: length, Capacity: capacity}
}

// GetLatest builds a snapshot of every counter plus the Go runtime metrics.
func (m *Monitor) GetLatest() Stats {
	if m == nil {
		return Stats{}
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.RLock()
	process, groupsCount := m.process, m.groupsCount
	queues := make(map[string]QueueStats, len(m.queues))
	for name, q := range m.queues {
		queues[name] = q
	}
	m.mu.RUnlock()

	stats := Stats{
		ActiveConnections: m.activeConnections.Load(),
		Broadcasts:        m.broadcasts.Load(),
		Deliveries:        m.deliveries.Load(),
		FailedDeliveries:  m.failedDeliveries.Load(),
		PrunedConnections: m.pruned.Load(),
		MessagesCreated:   m.created.Load(),
		MessagesEdited:    m.edited.Load(),
		MessagesDeleted:   m.deleted.Load(),
		RejectedEvents:    m.rejected.Load(),
		DroppedIndexing:   m.droppedIndexing.Load(),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		NumGoroutines:     runtime.NumGoroutine(),
		Queues:            queues,
		Process:           process,
		Uptime:            time.Since(m.startedAt).Truncate(time.Second).String(),
	}
	if groupsCount != nil {
		stats.ActiveGroups = groupsCount()
	}

	m.log.Debug("Stats snapshot",
		"connections", stats.ActiveConnections,
		"groups", stats.ActiveGroups,
		"broadcasts", stats.Broadcasts,
		"mem_mb", stats.AllocMemMb,
	)
	return stats
}

// Package store supplies the repository implementations the kernel is wired
// against: an in-memory store for tests and embedding, and a SQLite store
// for production use. Both honor the single-writer-per-identity discipline;
// the mutexes here only guard map/connection access, not business state.
package store

import (
	"sync"

	"ceopilot/internal/types"
)

// Mem is the in-memory implementation of every kernel repository. Zero
// value is not usable; call NewMem.
type Mem struct {
	mu        sync.RWMutex
	outcomes  map[string][]types.TaskOutcomeRecord // identity -> records
	memories  map[string]map[string]types.MemoryRecord
	tasks     map[string]map[string]types.ScheduledTask
	profiles  map[string]types.HumanControlProfile
	prefs     map[string]types.RoutingPreference
	costCaps  map[string]*types.ModelTier
	emergency *types.EmergencyMode
	audits    map[string][]types.AuditEntry
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		outcomes: make(map[string][]types.TaskOutcomeRecord),
		memories: make(map[string]map[string]types.MemoryRecord),
		tasks:    make(map[string]map[string]types.ScheduledTask),
		profiles: make(map[string]types.HumanControlProfile),
		prefs:    make(map[string]types.RoutingPreference),
		costCaps: make(map[string]*types.ModelTier),
		audits:   make(map[string][]types.AuditEntry),
	}
}

// Interface conformance.
var (
	_ types.OutcomeStore     = (*Mem)(nil)
	_ types.MemoryRepository = (*Mem)(nil)
	_ types.TaskStore        = (*Mem)(nil)
	_ types.ControlStore     = (*Mem)(nil)
	_ types.AuditStore       = (*Mem)(nil)
)

// ListOutcomes returns the identity's outcomes for one task type.
func (m *Mem) ListOutcomes(identity, taskType string) ([]types.TaskOutcomeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.TaskOutcomeRecord
	for _, rec := range m.outcomes[identity] {
		if rec.TaskType == taskType {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendOutcome records a completed task outcome.
func (m *Mem) AppendOutcome(identity string, rec types.TaskOutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[identity] = append(m.outcomes[identity], rec)
	return nil
}

// ListMemory returns all memory records for the identity.
func (m *Mem) ListMemory(identity string) ([]types.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.MemoryRecord, 0, len(m.memories[identity]))
	for _, rec := range m.memories[identity] {
		out = append(out, rec)
	}
	return out, nil
}

// PutMemory upserts a memory record.
func (m *Mem) PutMemory(identity string, rec types.MemoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.memories[identity] == nil {
		m.memories[identity] = make(map[string]types.MemoryRecord)
	}
	m.memories[identity][rec.MemoryID] = rec
	return nil
}

// DeleteMemory removes a memory record if present.
func (m *Mem) DeleteMemory(identity, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.memories[identity], memoryID)
	return nil
}

// ListTasks returns all scheduled tasks for the identity.
func (m *Mem) ListTasks(identity string) ([]types.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ScheduledTask, 0, len(m.tasks[identity]))
	for _, task := range m.tasks[identity] {
		out = append(out, task)
	}
	return out, nil
}

// SaveTask upserts a scheduled task.
func (m *Mem) SaveTask(identity string, task types.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tasks[identity] == nil {
		m.tasks[identity] = make(map[string]types.ScheduledTask)
	}
	m.tasks[identity][task.TaskID] = task
	return nil
}

// HumanProfile returns the identity's profile, nil if none exists.
func (m *Mem) HumanProfile(identity string) (*types.HumanControlProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if profile, ok := m.profiles[identity]; ok {
		return &profile, nil
	}
	return nil, nil
}

// SaveHumanProfile upserts a profile.
func (m *Mem) SaveHumanProfile(profile types.HumanControlProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.IdentityKey] = profile
	return nil
}

// RoutingPreference returns the identity's preference, nil if none exists.
func (m *Mem) RoutingPreference(identity string) (*types.RoutingPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pref, ok := m.prefs[identity]; ok {
		return &pref, nil
	}
	return nil, nil
}

// SaveRoutingPreference upserts a preference.
func (m *Mem) SaveRoutingPreference(pref types.RoutingPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.IdentityKey] = pref
	return nil
}

// CostCap returns the identity's cost-routing ceiling, nil if unset.
func (m *Mem) CostCap(identity string) (*types.ModelTier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cap := m.costCaps[identity]; cap != nil {
		tier := *cap
		return &tier, nil
	}
	return nil, nil
}

// SetCostCap sets or clears the identity's cost-routing ceiling.
func (m *Mem) SetCostCap(identity string, tier *types.ModelTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tier == nil {
		delete(m.costCaps, identity)
		return nil
	}
	t := *tier
	m.costCaps[identity] = &t
	return nil
}

// Emergency returns the stored emergency mode, nil if none.
func (m *Mem) Emergency() (*types.EmergencyMode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.emergency == nil {
		return nil, nil
	}
	mode := *m.emergency
	return &mode, nil
}

// SetEmergency stores or clears the emergency mode.
func (m *Mem) SetEmergency(mode *types.EmergencyMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mode == nil {
		m.emergency = nil
		return nil
	}
	copied := *mode
	m.emergency = &copied
	return nil
}

// AppendAudit appends an audit entry; entries are never rewritten.
func (m *Mem) AppendAudit(identity string, entry types.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits[identity] = append(m.audits[identity], entry)
	return nil
}

// ListAudit returns the identity's full audit history in append order.
func (m *Mem) ListAudit(identity string) ([]types.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.AuditEntry, len(m.audits[identity]))
	copy(out, m.audits[identity])
	return out, nil
}

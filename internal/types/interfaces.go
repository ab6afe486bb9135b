package types

// The kernel never touches persistence directly. Every read and write goes
// through one of these identity-keyed repositories; production wiring
// supplies the SQLite implementation (internal/store), tests supply
// in-memory fakes. All mutations are single-writer per identity, so
// implementations do not need cross-identity coordination.

// OutcomeStore provides read access to historical task outcomes and lets
// the pipeline record new ones. The router only ever reads.
type OutcomeStore interface {
	ListOutcomes(identity, taskType string) ([]TaskOutcomeRecord, error)
	AppendOutcome(identity string, rec TaskOutcomeRecord) error
}

// MemoryRepository holds memory records per identity. The memory policy
// layer (internal/memory) implements scoping, decay, and eviction on top.
type MemoryRepository interface {
	ListMemory(identity string) ([]MemoryRecord, error)
	PutMemory(identity string, rec MemoryRecord) error
	DeleteMemory(identity, memoryID string) error
}

// TaskStore holds scheduled tasks per identity.
type TaskStore interface {
	ListTasks(identity string) ([]ScheduledTask, error)
	SaveTask(identity string, task ScheduledTask) error
}

// ControlStore holds the per-identity override surfaces the router consults:
// human control profiles, routing preferences, cost-routing caps, and the
// global emergency mode. Lookups return nil when nothing is set.
type ControlStore interface {
	HumanProfile(identity string) (*HumanControlProfile, error)
	SaveHumanProfile(profile HumanControlProfile) error

	RoutingPreference(identity string) (*RoutingPreference, error)
	SaveRoutingPreference(pref RoutingPreference) error

	CostCap(identity string) (*ModelTier, error)
	SetCostCap(identity string, tier *ModelTier) error

	Emergency() (*EmergencyMode, error)
	SetEmergency(mode *EmergencyMode) error
}

// AuditStore is the append-only (request, decision) history per identity.
type AuditStore interface {
	AppendAudit(identity string, entry AuditEntry) error
	ListAudit(identity string) ([]AuditEntry, error)
}

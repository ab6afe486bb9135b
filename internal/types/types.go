// Package types defines the shared data model of the ceoPilot governance
// kernel: routing requests and decisions, memory records, norm rules,
// assessment records, scheduled tasks, and the repository interfaces the
// evaluators are wired against.
//
// Everything here is plain data. The evaluators (norms, epistemic,
// secondorder, router) are pure functions over these values plus a read of
// the identity-scoped stores; nothing in this package mutates state.
package types

import "time"

// TaskClass categorizes a routing request by operational risk class.
type TaskClass string

const (
	TaskClassRoutine     TaskClass = "routine"
	TaskClassHighRisk    TaskClass = "high_risk"
	TaskClassExploratory TaskClass = "exploratory"
)

// RiskLevel grades the blast radius of a proposed action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ReasoningDepth is the caller's estimate of how much deliberation the task
// needs. It seeds the router's preferred tier.
type ReasoningDepth string

const (
	DepthShallow ReasoningDepth = "shallow"
	DepthMedium  ReasoningDepth = "medium"
	DepthDeep    ReasoningDepth = "deep"
)

// Impact classifies an action's reversibility. It drives evidence
// requirements in the epistemic assessor and payload requirements in the
// second-order assessor.
type Impact string

const (
	ImpactReversible   Impact = "reversible"
	ImpactDifficult    Impact = "difficult"
	ImpactIrreversible Impact = "irreversible"
)

// ModelRoutingRequest is an immutable description of one proposed model
// invocation. The router never mutates it; decisions reference it by
// RequestID in the audit trail.
type ModelRoutingRequest struct {
	RequestID           string         `json:"request_id"`
	Task                string         `json:"task"` // history lookup key
	TaskClass           TaskClass      `json:"task_class"`
	RiskLevel           RiskLevel      `json:"risk_level"`
	Irreversible        bool           `json:"irreversible"`
	ComplianceSensitive bool           `json:"compliance_sensitive"`
	NoveltyScore        float64        `json:"novelty_score"`   // 0..1
	AmbiguityScore      float64        `json:"ambiguity_score"` // 0..1
	ReasoningDepth      ReasoningDepth `json:"reasoning_depth"`
	ExpectedTokens      int            `json:"expected_tokens"`
	BudgetCents         int            `json:"budget_cents"`
	RequiresArbitration bool           `json:"requires_arbitration"`
}

// ModelSpec describes one catalog entry. Multiple specs may share a tier;
// the router picks the cheapest spec with enough token capacity.
type ModelSpec struct {
	ID                   string    `json:"id"`
	Tier                 ModelTier `json:"tier"`
	CostPer1KTokensCents float64   `json:"cost_per_1k_tokens_cents"`
	MaxTokens            int       `json:"max_tokens"`
}

// ModelRoutingDecision is the router's output record. Decisions are
// immutable once created: the justification trail is append-only during
// resolution and never rewritten afterwards.
type ModelRoutingDecision struct {
	DecisionID         string    `json:"decision_id"`
	RequestID          string    `json:"request_id"`
	SelectedModel      string    `json:"selected_model"`
	Tier               ModelTier `json:"tier"`
	Justification      []string  `json:"justification"`
	EstimatedCostCents int       `json:"estimated_cost_cents"`
	WithinBudget       bool      `json:"within_budget"`
	CreatedAt          time.Time `json:"created_at"`
}

// TaskOutcomeRecord is a historical fact about one completed task. The
// router reads these as statistical input for cost-aware downgrades and
// never writes them.
type TaskOutcomeRecord struct {
	TaskType         string    `json:"task_type"`
	ModelTier        ModelTier `json:"model_tier"`
	QualityScore     float64   `json:"quality_score"` // 0..1
	CostCents        int       `json:"cost_cents"`
	EvaluationPassed bool      `json:"evaluation_passed"`
}

// AuditEntry pairs a routing request with the decision it produced.
// The audit log is append-only; entries are never mutated.
type AuditEntry struct {
	EntryID    string               `json:"entry_id"`
	Request    ModelRoutingRequest  `json:"request"`
	Decision   ModelRoutingDecision `json:"decision"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// MemoryKind is the class of a memory record.
type MemoryKind string

const (
	MemoryFact     MemoryKind = "fact"
	MemoryDecision MemoryKind = "decision"
	MemoryOutcome  MemoryKind = "outcome"
)

// MemorySource identifies who authored a memory record.
type MemorySource string

const (
	SourceSystem MemorySource = "system"
	SourceHuman  MemorySource = "human"
	SourceAgent  MemorySource = "agent"
)

// MemoryScope narrows a record's visibility. A populated field on a record
// must match the querying scope exactly; empty fields widen visibility and
// are only matched by queries that explicitly allow global records.
type MemoryScope struct {
	TenantID  string `json:"tenant_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// MemoryRecord is one stored memory. Confidence strictly decreases with age
// (exponential decay applied by the memory policy) and the record becomes
// invisible once confidence drops below the retrieval floor or the record
// passes its expiry. UpdatedAt is the true write time and orders eviction;
// DecayedAt only tracks the last persisted decay so reads never refresh a
// record's eviction position.
type MemoryRecord struct {
	MemoryID   string         `json:"memory_id"`
	Kind       MemoryKind     `json:"kind"`
	Subject    string         `json:"subject"`
	Data       map[string]any `json:"data,omitempty"`
	Confidence float64        `json:"confidence"` // 0..1
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DecayedAt  *time.Time     `json:"decayed_at,omitempty"`
	Scope      MemoryScope    `json:"scope"`
	Source     MemorySource   `json:"source"`
	Tags       []string       `json:"tags,omitempty"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
}

// NormSeverity distinguishes hard (never overridable) from soft rules.
type NormSeverity string

const (
	SeverityHard NormSeverity = "hard"
	SeveritySoft NormSeverity = "soft"
)

// NormRule is one entry in the declarative behavioral-norm table. Rules are
// data, not code: new norms are table additions, not new branches.
type NormRule struct {
	NormID                string       `json:"norm_id" yaml:"norm_id"`
	Description           string       `json:"description" yaml:"description"`
	Severity              NormSeverity `json:"severity" yaml:"severity"`
	TriggerTags           []string     `json:"trigger_tags" yaml:"trigger_tags"`
	RequiresJustification bool         `json:"requires_justification" yaml:"requires_justification"`
	Overridable           bool         `json:"overridable" yaml:"overridable"`
}

// NormDecision is the norm evaluator's finding for one action.
type NormDecision struct {
	Allowed             bool       `json:"allowed"`
	Reason              string     `json:"reason,omitempty"`
	Violations          []NormRule `json:"violations,omitempty"`
	RequiresHumanReview bool       `json:"requires_human_review"`
	CheckedAt           time.Time  `json:"checked_at"`
}

// EpistemicDecision captures novelty and evidence-sufficiency findings.
type EpistemicDecision struct {
	Allowed             bool      `json:"allowed"`
	Reason              string    `json:"reason,omitempty"`
	NoveltyScore        float64   `json:"novelty_score"`
	EvidenceCount       int       `json:"evidence_count"`
	RequiredEvidence    int       `json:"required_evidence"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	CheckedAt           time.Time `json:"checked_at"`
}

// SecondOrderEffects is the caller-supplied analysis of an action's
// downstream consequences. It is schema-validated before gating.
type SecondOrderEffects struct {
	Summary         string   `json:"summary"`
	Uncertainty     float64  `json:"uncertainty"` // 0..1
	IncentiveRisks  []string `json:"incentive_risks,omitempty"`
	AffectedParties []string `json:"affected_parties,omitempty"`
}

// SecondOrderDecision is the second-order assessor's finding.
type SecondOrderDecision struct {
	Allowed             bool      `json:"allowed"`
	Reason              string    `json:"reason,omitempty"`
	Uncertainty         float64   `json:"uncertainty"`
	IncentiveRisks      []string  `json:"incentive_risks,omitempty"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	CheckedAt           time.Time `json:"checked_at"`
}

// TaskStatus is a scheduled task's lifecycle state:
// scheduled -> executed | deferred -> scheduled again | failed.
type TaskStatus string

const (
	TaskScheduled TaskStatus = "scheduled"
	TaskDeferred  TaskStatus = "deferred"
	TaskExecuted  TaskStatus = "executed"
	TaskFailed    TaskStatus = "failed"
)

// ScheduledTask is the one mutable record in the kernel. Attempts is
// monotonically non-decreasing and incremented exactly once per scheduler
// pass that considers the task due.
type ScheduledTask struct {
	TaskID        string         `json:"task_id"`
	Action        string         `json:"action"`
	AgentContext  map[string]any `json:"agent_context,omitempty"`
	Initiator     string         `json:"initiator"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	Attempts      int            `json:"attempts"`
	LastAttemptAt *time.Time     `json:"last_attempt_at,omitempty"`
	Status        TaskStatus     `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// HumanControlProfile is a per-identity human override. A nil MaxModelTier
// means uncapped; only an explicit human setting lowers the ceiling.
type HumanControlProfile struct {
	IdentityKey  string     `json:"identity_key"`
	MaxModelTier *ModelTier `json:"max_model_tier,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RoutingPreference is a per-identity tier window. Only active preferences
// are consulted by the router.
type RoutingPreference struct {
	IdentityKey string     `json:"identity_key"`
	Active      bool       `json:"active"`
	MinTier     *ModelTier `json:"min_tier,omitempty"`
	MaxTier     *ModelTier `json:"max_tier,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// EmergencyMode is a global tier ceiling applied during a declared incident.
type EmergencyMode struct {
	Active     bool      `json:"active"`
	MaxTier    ModelTier `json:"max_tier"`
	Reason     string    `json:"reason,omitempty"`
	DeclaredAt time.Time `json:"declared_at"`
}

// SchedulerRunSummary aggregates one scheduler pass.
type SchedulerRunSummary struct {
	Processed int `json:"processed"`
	Executed  int `json:"executed"`
	Deferred  int `json:"deferred"`
	Failed    int `json:"failed"`
}

// Package memory implements the scoped memory policy over an injected
// repository: authority-checked writes, scope-filtered retrieval with
// persisted exponential confidence decay, bounded eviction, and explicit
// pruning. There is no background timer; callers drive pruning.
package memory

import (
	"math"
	"sort"
	"strings"
	"time"

	"ceopilot/internal/logging"
	"ceopilot/internal/schema"
	"ceopilot/internal/types"
)

// Write rejection reasons.
const (
	ReasonLowConfidence        = "memory_low_confidence"
	ReasonExpired              = "memory_expired"
	ReasonVerificationRequired = "memory_verification_required"
	ReasonPermissionRequired   = "memory_permission_required"
)

// Policy configures memory admission, decay, and eviction.
type Policy struct {
	MinConfidenceToWrite float64
	MaxRecords           int
	RetrievalFloor       float64

	// Decay starts once a record's last update is older than DecayAfter,
	// then steps every DecayInterval, multiplying confidence by DecayFactor
	// per step. Decay is persisted on read, not recomputed from origin.
	DecayAfter    time.Duration
	DecayInterval time.Duration
	DecayFactor   float64

	// ExpiryWindow is the hard age limit; records older than this are
	// invisible regardless of confidence.
	ExpiryWindow time.Duration

	// KindsRequiringVerification must arrive with a passing verification
	// status; KindsRequiringExecution must come from an execute-tier
	// context unless a human wrote them.
	KindsRequiringVerification map[types.MemoryKind]bool
	KindsRequiringExecution    map[types.MemoryKind]bool
}

// DefaultPolicy mirrors the shipped configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinConfidenceToWrite: 0.2,
		MaxRecords:           500,
		RetrievalFloor:       0.1,
		DecayAfter:           24 * time.Hour,
		DecayInterval:        24 * time.Hour,
		DecayFactor:          0.9,
		ExpiryWindow:         90 * 24 * time.Hour,
		KindsRequiringVerification: map[types.MemoryKind]bool{
			types.MemoryFact: true,
		},
		KindsRequiringExecution: map[types.MemoryKind]bool{
			types.MemoryDecision: true,
			types.MemoryOutcome:  true,
		},
	}
}

// WriteContext carries the caller's authority when writing.
type WriteContext struct {
	VerificationStatus string // "pass" clears verification-gated kinds
	PermissionTier     string // "execute" clears execution-gated kinds
}

// WriteResult reports a write. Policy rejections are results, not errors.
type WriteResult struct {
	Written  bool
	Reason   string
	MemoryID string
	Evicted  int
}

// Query selects records on retrieval.
type Query struct {
	Scope       types.MemoryScope
	AllowGlobal bool // also match records with unset scope fields
	Kind        *types.MemoryKind
	Subject     string // case-insensitive substring match
	Tags        []string
	Limit       int
	AsOf        time.Time // zero means now
}

// Write validates and admits a record, then evicts the oldest-updated
// records beyond the policy's size bound.
func Write(repo types.MemoryRepository, identity string, rec types.MemoryRecord, ctx WriteContext, policy Policy) (WriteResult, error) {
	now := types.NowUTC()
	if rec.MemoryID == "" {
		rec.MemoryID = types.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	if err := schema.ValidateMemoryRecord(rec); err != nil {
		return WriteResult{}, err
	}

	switch {
	case rec.Confidence < policy.MinConfidenceToWrite:
		return WriteResult{Reason: ReasonLowConfidence}, nil
	case rec.ExpiresAt != nil && !rec.ExpiresAt.After(now):
		return WriteResult{Reason: ReasonExpired}, nil
	case policy.KindsRequiringVerification[rec.Kind] && ctx.VerificationStatus != "pass":
		return WriteResult{Reason: ReasonVerificationRequired}, nil
	case policy.KindsRequiringExecution[rec.Kind] && ctx.PermissionTier != "execute" && rec.Source != types.SourceHuman:
		return WriteResult{Reason: ReasonPermissionRequired}, nil
	}

	if err := repo.PutMemory(identity, rec); err != nil {
		return WriteResult{}, err
	}

	evicted, err := evictOverflow(repo, identity, policy)
	if err != nil {
		return WriteResult{}, err
	}

	logging.MemoryDebug("wrote memory %s (kind=%s, evicted=%d)", rec.MemoryID, rec.Kind, evicted)
	return WriteResult{Written: true, MemoryID: rec.MemoryID, Evicted: evicted}, nil
}

// evictOverflow drops the oldest-updated records beyond MaxRecords.
func evictOverflow(repo types.MemoryRepository, identity string, policy Policy) (int, error) {
	if policy.MaxRecords <= 0 {
		return 0, nil
	}
	records, err := repo.ListMemory(identity)
	if err != nil {
		return 0, err
	}
	overflow := len(records) - policy.MaxRecords
	if overflow <= 0 {
		return 0, nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})
	for i := 0; i < overflow; i++ {
		if err := repo.DeleteMemory(identity, records[i].MemoryID); err != nil {
			return i, err
		}
	}
	return overflow, nil
}

// ApplyDecay returns the record with exponential confidence decay applied
// as of now, and whether anything changed. Decay is keyed off DecayedAt
// (falling back to UpdatedAt for records never decayed) so persisted decay
// does not compound on the next read. UpdatedAt is left alone: it stays the
// true write time, so a read never refreshes a record's eviction position.
func ApplyDecay(rec types.MemoryRecord, policy Policy, now time.Time) (types.MemoryRecord, bool) {
	if policy.DecayFactor <= 0 || policy.DecayFactor >= 1 || policy.DecayInterval <= 0 {
		return rec, false
	}
	base := rec.UpdatedAt
	if rec.DecayedAt != nil {
		base = *rec.DecayedAt
	}
	age := now.Sub(base)
	if age <= policy.DecayAfter {
		return rec, false
	}

	steps := int(age-policy.DecayAfter)/int(policy.DecayInterval) + 1
	rec.Confidence = types.Clamp01(rec.Confidence * math.Pow(policy.DecayFactor, float64(steps)))
	decayedAt := now
	rec.DecayedAt = &decayedAt
	return rec, true
}

// expired reports whether a record is past its explicit expiry or the
// policy's hard age limit.
func expired(rec types.MemoryRecord, policy Policy, now time.Time) bool {
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
		return true
	}
	return policy.ExpiryWindow > 0 && now.Sub(rec.CreatedAt) > policy.ExpiryWindow
}

// scopeMatches applies the visibility rule: every populated field on the
// record must equal the query field exactly; unset record fields only match
// when the query allows global visibility.
func scopeMatches(rec types.MemoryScope, q Query) bool {
	pairs := [][2]string{
		{rec.TenantID, q.Scope.TenantID},
		{rec.UserID, q.Scope.UserID},
		{rec.SessionID, q.Scope.SessionID},
		{rec.Topic, q.Scope.Topic},
	}
	for _, p := range pairs {
		recField, queryField := p[0], p[1]
		if recField != "" {
			if recField != queryField {
				return false
			}
			continue
		}
		if queryField != "" && !q.AllowGlobal {
			return false
		}
	}
	return true
}

// Retrieve filters by scope, kind, expiry, and the decayed confidence
// floor, persists any decay it applied, then returns records sorted by
// confidence descending and truncated to the query limit.
func Retrieve(repo types.MemoryRepository, identity string, q Query, policy Policy) ([]types.MemoryRecord, error) {
	now := q.AsOf
	if now.IsZero() {
		now = types.NowUTC()
	}

	records, err := repo.ListMemory(identity)
	if err != nil {
		return nil, err
	}

	var out []types.MemoryRecord
	for _, rec := range records {
		if !scopeMatches(rec.Scope, q) {
			continue
		}
		if q.Kind != nil && rec.Kind != *q.Kind {
			continue
		}
		if expired(rec, policy, now) {
			continue
		}

		decayed, changed := ApplyDecay(rec, policy, now)
		if changed {
			// Persist decay so it is not recomputed on the next read.
			if err := repo.PutMemory(identity, decayed); err != nil {
				return nil, err
			}
		}
		if decayed.Confidence < policy.RetrievalFloor {
			continue
		}
		if q.Subject != "" && !strings.Contains(strings.ToLower(decayed.Subject), strings.ToLower(q.Subject)) {
			continue
		}
		if len(q.Tags) > 0 && !tagsIntersect(decayed.Tags, q.Tags) {
			continue
		}
		out = append(out, decayed)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func tagsIntersect(recordTags, queryTags []string) bool {
	set := make(map[string]struct{}, len(recordTags))
	for _, t := range recordTags {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range queryTags {
		if _, ok := set[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

// PruneExpired removes all expired records and returns how many were
// removed. Callers invoke this explicitly; there is no background timer.
func PruneExpired(repo types.MemoryRepository, identity string, policy Policy) (int, error) {
	now := types.NowUTC()
	records, err := repo.ListMemory(identity)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rec := range records {
		if !expired(rec, policy, now) {
			continue
		}
		if err := repo.DeleteMemory(identity, rec.MemoryID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		logging.Memory("pruned %d expired memory records for %s", removed, identity)
	}
	return removed, nil
}

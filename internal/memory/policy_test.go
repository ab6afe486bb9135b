package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ceopilot/internal/store"
	"ceopilot/internal/types"
)

func testRecord(id string, confidence float64) types.MemoryRecord {
	now := types.NowUTC()
	return types.MemoryRecord{
		MemoryID:   id,
		Kind:       types.MemoryFact,
		Subject:    "quarterly revenue targets",
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
		Source:     types.SourceAgent,
	}
}

func verifiedCtx() WriteContext {
	return WriteContext{VerificationStatus: "pass", PermissionTier: "execute"}
}

func TestWrite(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("admits a verified fact", func(t *testing.T) {
		repo := store.NewMem()
		result, err := Write(repo, "id-1", testRecord("m1", 0.8), verifiedCtx(), policy)
		require.NoError(t, err)
		assert.True(t, result.Written)
		assert.Equal(t, "m1", result.MemoryID)
	})

	t.Run("assigns an id when missing", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("", 0.8)
		result, err := Write(repo, "id-1", rec, verifiedCtx(), policy)
		require.NoError(t, err)
		assert.True(t, result.Written)
		assert.NotEmpty(t, result.MemoryID)
	})

	t.Run("rejects low confidence", func(t *testing.T) {
		repo := store.NewMem()
		result, err := Write(repo, "id-1", testRecord("m1", 0.1), verifiedCtx(), policy)
		require.NoError(t, err)
		assert.False(t, result.Written)
		assert.Equal(t, ReasonLowConfidence, result.Reason)
	})

	t.Run("rejects an already-expired record", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("m1", 0.8)
		past := types.NowUTC().Add(-time.Hour)
		rec.ExpiresAt = &past
		result, err := Write(repo, "id-1", rec, verifiedCtx(), policy)
		require.NoError(t, err)
		assert.False(t, result.Written)
		assert.Equal(t, ReasonExpired, result.Reason)
	})

	t.Run("facts need verification", func(t *testing.T) {
		repo := store.NewMem()
		result, err := Write(repo, "id-1", testRecord("m1", 0.8), WriteContext{PermissionTier: "execute"}, policy)
		require.NoError(t, err)
		assert.False(t, result.Written)
		assert.Equal(t, ReasonVerificationRequired, result.Reason)
	})

	t.Run("decisions need execution authority", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("m1", 0.8)
		rec.Kind = types.MemoryDecision
		result, err := Write(repo, "id-1", rec, WriteContext{VerificationStatus: "pass"}, policy)
		require.NoError(t, err)
		assert.False(t, result.Written)
		assert.Equal(t, ReasonPermissionRequired, result.Reason)
	})

	t.Run("human-authored decisions bypass the execution gate", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("m1", 0.8)
		rec.Kind = types.MemoryDecision
		rec.Source = types.SourceHuman
		result, err := Write(repo, "id-1", rec, WriteContext{}, policy)
		require.NoError(t, err)
		assert.True(t, result.Written)
	})

	t.Run("schema-invalid record errors", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("m1", 0.8)
		rec.Subject = ""
		_, err := Write(repo, "id-1", rec, verifiedCtx(), policy)
		assert.Error(t, err)
	})
}

func TestEviction(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRecords = 3
	repo := store.NewMem()

	base := types.NowUTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("m%d", i), 0.9)
		rec.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := Write(repo, "id-1", rec, verifiedCtx(), policy)
		require.NoError(t, err)
	}

	// The fourth write evicts the oldest-updated record, m0.
	result, err := Write(repo, "id-1", testRecord("m3", 0.9), verifiedCtx(), policy)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evicted)

	records, err := repo.ListMemory("id-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.NotEqual(t, "m0", rec.MemoryID)
	}
}

// A retrieval that persists decay must not move the record ahead of
// genuinely fresh writes in the eviction order.
func TestEvictionAfterDecayedRead(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRecords = 2
	repo := store.NewMem()

	now := types.NowUTC()
	old := testRecord("old", 0.9)
	old.CreatedAt = now.Add(-40 * time.Hour)
	old.UpdatedAt = now.Add(-40 * time.Hour)
	require.NoError(t, repo.PutMemory("id-1", old))

	out, err := Retrieve(repo, "id-1", memory1Query(now), policy)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].DecayedAt)

	_, err = Write(repo, "id-1", testRecord("fresh-1", 0.9), verifiedCtx(), policy)
	require.NoError(t, err)

	result, err := Write(repo, "id-1", testRecord("fresh-2", 0.9), verifiedCtx(), policy)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evicted)

	records, err := repo.ListMemory("id-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEqual(t, "old", rec.MemoryID)
	}
}

func TestApplyDecay(t *testing.T) {
	policy := DefaultPolicy()
	now := types.NowUTC()

	t.Run("no decay within the grace window", func(t *testing.T) {
		rec := testRecord("m1", 0.8)
		rec.UpdatedAt = now.Add(-12 * time.Hour)
		decayed, changed := ApplyDecay(rec, policy, now)
		assert.False(t, changed)
		assert.Equal(t, 0.8, decayed.Confidence)
	})

	t.Run("one step after the grace window", func(t *testing.T) {
		rec := testRecord("m1", 0.8)
		rec.UpdatedAt = now.Add(-25 * time.Hour)
		decayed, changed := ApplyDecay(rec, policy, now)
		assert.True(t, changed)
		assert.InDelta(t, 0.8*0.9, decayed.Confidence, 1e-9)
		require.NotNil(t, decayed.DecayedAt)
		assert.Equal(t, now, *decayed.DecayedAt)
		// The write time is untouched; only the decay baseline moves.
		assert.Equal(t, rec.UpdatedAt, decayed.UpdatedAt)
	})

	t.Run("confidence strictly decreases with age", func(t *testing.T) {
		prev := 1.0
		for _, age := range []time.Duration{25 * time.Hour, 50 * time.Hour, 100 * time.Hour} {
			rec := testRecord("m1", 1.0)
			rec.UpdatedAt = now.Add(-age)
			decayed, _ := ApplyDecay(rec, policy, now)
			assert.Less(t, decayed.Confidence, prev, "age %s", age)
			prev = decayed.Confidence
		}
	})

	t.Run("disabled decay leaves the record alone", func(t *testing.T) {
		off := policy
		off.DecayFactor = 1
		rec := testRecord("m1", 0.8)
		rec.UpdatedAt = now.Add(-100 * time.Hour)
		_, changed := ApplyDecay(rec, off, now)
		assert.False(t, changed)
	})
}

func TestRetrieve(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("persisted decay does not recompound", func(t *testing.T) {
		repo := store.NewMem()
		now := types.NowUTC()
		rec := testRecord("m1", 0.8)
		rec.UpdatedAt = now.Add(-30 * time.Hour)
		require.NoError(t, repo.PutMemory("id-1", rec))

		first, err := Retrieve(repo, "id-1", memory1Query(now), policy)
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := Retrieve(repo, "id-1", memory1Query(now), policy)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, first[0].Confidence, second[0].Confidence)
	})

	t.Run("retrieval floor hides weak records", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("m1", 0.3)
		rec.UpdatedAt = types.NowUTC().Add(-30 * 24 * time.Hour)
		require.NoError(t, repo.PutMemory("id-1", rec))

		out, err := Retrieve(repo, "id-1", memory1Query(time.Time{}), policy)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("tenant scope isolates records", func(t *testing.T) {
		repo := store.NewMem()
		rec := testRecord("m1", 0.9)
		rec.Scope = types.MemoryScope{TenantID: "tenant-1"}
		require.NoError(t, repo.PutMemory("id-1", rec))

		mine, err := Retrieve(repo, "id-1", Query{Scope: types.MemoryScope{TenantID: "tenant-1"}, AllowGlobal: true}, policy)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		theirs, err := Retrieve(repo, "id-1", Query{Scope: types.MemoryScope{TenantID: "tenant-2"}, AllowGlobal: true}, policy)
		require.NoError(t, err)
		assert.Empty(t, theirs)
	})

	t.Run("global records need explicit opt-in", func(t *testing.T) {
		repo := store.NewMem()
		require.NoError(t, repo.PutMemory("id-1", testRecord("m1", 0.9))) // no scope

		q := Query{Scope: types.MemoryScope{TenantID: "tenant-1"}}
		hidden, err := Retrieve(repo, "id-1", q, policy)
		require.NoError(t, err)
		assert.Empty(t, hidden)

		q.AllowGlobal = true
		visible, err := Retrieve(repo, "id-1", q, policy)
		require.NoError(t, err)
		assert.Len(t, visible, 1)
	})

	t.Run("sorted by confidence descending and limited", func(t *testing.T) {
		repo := store.NewMem()
		for i, conf := range []float64{0.5, 0.9, 0.7} {
			rec := testRecord(fmt.Sprintf("m%d", i), conf)
			require.NoError(t, repo.PutMemory("id-1", rec))
		}

		out, err := Retrieve(repo, "id-1", Query{AllowGlobal: true, Limit: 2}, policy)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 0.9, out[0].Confidence)
		assert.Equal(t, 0.7, out[1].Confidence)
	})

	t.Run("filters by kind subject and tags", func(t *testing.T) {
		repo := store.NewMem()
		fact := testRecord("m1", 0.9)
		fact.Tags = []string{"finance"}
		require.NoError(t, repo.PutMemory("id-1", fact))

		outcome := testRecord("m2", 0.9)
		outcome.Kind = types.MemoryOutcome
		outcome.Subject = "shipping schedule"
		require.NoError(t, repo.PutMemory("id-1", outcome))

		kind := types.MemoryOutcome
		byKind, err := Retrieve(repo, "id-1", Query{AllowGlobal: true, Kind: &kind}, policy)
		require.NoError(t, err)
		require.Len(t, byKind, 1)
		assert.Equal(t, "m2", byKind[0].MemoryID)

		bySubject, err := Retrieve(repo, "id-1", Query{AllowGlobal: true, Subject: "REVENUE"}, policy)
		require.NoError(t, err)
		require.Len(t, bySubject, 1)
		assert.Equal(t, "m1", bySubject[0].MemoryID)

		byTag, err := Retrieve(repo, "id-1", Query{AllowGlobal: true, Tags: []string{"FINANCE", "ops"}}, policy)
		require.NoError(t, err)
		require.Len(t, byTag, 1)
		assert.Equal(t, "m1", byTag[0].MemoryID)
	})
}

// memory1Query is an open query pinned to a specific read time.
func memory1Query(asOf time.Time) Query {
	return Query{AllowGlobal: true, AsOf: asOf}
}

func TestPruneExpired(t *testing.T) {
	policy := DefaultPolicy()
	repo := store.NewMem()

	keep := testRecord("keep", 0.9)
	require.NoError(t, repo.PutMemory("id-1", keep))

	gone := testRecord("gone", 0.9)
	past := types.NowUTC().Add(-time.Hour)
	gone.ExpiresAt = &past
	require.NoError(t, repo.PutMemory("id-1", gone))

	ancient := testRecord("ancient", 0.9)
	ancient.CreatedAt = types.NowUTC().Add(-policy.ExpiryWindow - time.Hour)
	require.NoError(t, repo.PutMemory("id-1", ancient))

	removed, err := PruneExpired(repo, "id-1", policy)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	records, err := repo.ListMemory("id-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].MemoryID)
}

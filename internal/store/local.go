package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"ceopilot/internal/logging"
	"ceopilot/internal/types"
)

// Local is the SQLite-backed implementation of every kernel repository.
// Records are stored as JSON payloads keyed by identity plus record id;
// the kernel filters in Go, so the database carries no business logic.
type Local struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewLocal opens (or creates) the SQLite database at the given path.
func NewLocal(path string) (*Local, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocal")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Local{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Local store initialized at %s", path)
	return s, nil
}

// initialize creates the schema if needed.
func (s *Local) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			identity  TEXT NOT NULL,
			memory_id TEXT NOT NULL,
			payload   TEXT NOT NULL,
			PRIMARY KEY (identity, memory_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			identity TEXT NOT NULL,
			task_id  TEXT NOT NULL,
			payload  TEXT NOT NULL,
			PRIMARY KEY (identity, task_id)
		)`,
		`CREATE TABLE IF NOT EXISTS task_outcomes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			identity  TEXT NOT NULL,
			task_type TEXT NOT NULL,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_identity_type
			ON task_outcomes (identity, task_type)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			identity TEXT NOT NULL,
			payload  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_identity ON audit_log (identity)`,
		`CREATE TABLE IF NOT EXISTS human_profiles (
			identity TEXT PRIMARY KEY,
			payload  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routing_preferences (
			identity TEXT PRIMARY KEY,
			payload  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cost_caps (
			identity TEXT PRIMARY KEY,
			tier     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS emergency_mode (
			id      INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Local) Close() error {
	return s.db.Close()
}

// Interface conformance.
var (
	_ types.OutcomeStore     = (*Local)(nil)
	_ types.MemoryRepository = (*Local)(nil)
	_ types.TaskStore        = (*Local)(nil)
	_ types.ControlStore     = (*Local)(nil)
	_ types.AuditStore       = (*Local)(nil)
)

func (s *Local) ListOutcomes(identity, taskType string) ([]types.TaskOutcomeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT payload FROM task_outcomes WHERE identity = ? AND task_type = ? ORDER BY id`,
		identity, taskType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.TaskOutcomeRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec types.TaskOutcomeRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("corrupt outcome record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Local) AppendOutcome(identity string, rec types.TaskOutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO task_outcomes (identity, task_type, payload) VALUES (?, ?, ?)`,
		identity, rec.TaskType, string(payload))
	return err
}

func (s *Local) ListMemory(identity string) ([]types.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT payload FROM memory_records WHERE identity = ?`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.MemoryRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec types.MemoryRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("corrupt memory record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Local) PutMemory(identity string, rec types.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO memory_records (identity, memory_id, payload) VALUES (?, ?, ?)
		 ON CONFLICT (identity, memory_id) DO UPDATE SET payload = excluded.payload`,
		identity, rec.MemoryID, string(payload))
	return err
}

func (s *Local) DeleteMemory(identity, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`DELETE FROM memory_records WHERE identity = ? AND memory_id = ?`,
		identity, memoryID)
	return err
}

func (s *Local) ListTasks(identity string) ([]types.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT payload FROM scheduled_tasks WHERE identity = ?`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ScheduledTask
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var task types.ScheduledTask
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			return nil, fmt.Errorf("corrupt task record: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *Local) SaveTask(identity string, task types.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO scheduled_tasks (identity, task_id, payload) VALUES (?, ?, ?)
		 ON CONFLICT (identity, task_id) DO UPDATE SET payload = excluded.payload`,
		identity, task.TaskID, string(payload))
	return err
}

func (s *Local) HumanProfile(identity string) (*types.HumanControlProfile, error) {
	var profile types.HumanControlProfile
	ok, err := s.loadOne(`SELECT payload FROM human_profiles WHERE identity = ?`, identity, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

func (s *Local) SaveHumanProfile(profile types.HumanControlProfile) error {
	return s.saveOne(
		`INSERT INTO human_profiles (identity, payload) VALUES (?, ?)
		 ON CONFLICT (identity) DO UPDATE SET payload = excluded.payload`,
		profile.IdentityKey, profile)
}

func (s *Local) RoutingPreference(identity string) (*types.RoutingPreference, error) {
	var pref types.RoutingPreference
	ok, err := s.loadOne(`SELECT payload FROM routing_preferences WHERE identity = ?`, identity, &pref)
	if err != nil || !ok {
		return nil, err
	}
	return &pref, nil
}

func (s *Local) SaveRoutingPreference(pref types.RoutingPreference) error {
	return s.saveOne(
		`INSERT INTO routing_preferences (identity, payload) VALUES (?, ?)
		 ON CONFLICT (identity) DO UPDATE SET payload = excluded.payload`,
		pref.IdentityKey, pref)
}

func (s *Local) CostCap(identity string) (*types.ModelTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT tier FROM cost_caps WHERE identity = ?`, identity).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tier := types.ModelTier(raw)
	return &tier, nil
}

func (s *Local) SetCostCap(identity string, tier *types.ModelTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tier == nil {
		_, err := s.db.Exec(`DELETE FROM cost_caps WHERE identity = ?`, identity)
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO cost_caps (identity, tier) VALUES (?, ?)
		 ON CONFLICT (identity) DO UPDATE SET tier = excluded.tier`,
		identity, string(*tier))
	return err
}

func (s *Local) Emergency() (*types.EmergencyMode, error) {
	var mode types.EmergencyMode
	ok, err := s.loadOne(`SELECT payload FROM emergency_mode WHERE id = 1`, "", &mode)
	if err != nil || !ok {
		return nil, err
	}
	return &mode, nil
}

func (s *Local) SetEmergency(mode *types.EmergencyMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == nil {
		_, err := s.db.Exec(`DELETE FROM emergency_mode WHERE id = 1`)
		return err
	}
	payload, err := json.Marshal(mode)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO emergency_mode (id, payload) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
		string(payload))
	return err
}

func (s *Local) AppendAudit(identity string, entry types.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO audit_log (identity, payload) VALUES (?, ?)`,
		identity, string(payload))
	if err == nil {
		logging.Audit("appended entry %s for %s", entry.EntryID, identity)
	}
	return err
}

func (s *Local) ListAudit(identity string) ([]types.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT payload FROM audit_log WHERE identity = ? ORDER BY id`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.AuditEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry types.AuditEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("corrupt audit entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// loadOne runs a single-row payload query and unmarshals into dest.
// identity is ignored when the query takes no parameter.
func (s *Local) loadOne(query, identity string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	var err error
	if identity == "" {
		err = s.db.QueryRow(query).Scan(&payload)
	} else {
		err = s.db.QueryRow(query, identity).Scan(&payload)
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return false, fmt.Errorf("corrupt record: %w", err)
	}
	return true, nil
}

// saveOne marshals the value and runs an upsert with (key, payload) args.
func (s *Local) saveOne(query, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(query, key, string(payload))
	return err
}

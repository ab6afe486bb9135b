// Package control manages the override surfaces the router consults:
// per-identity human control profiles, routing preferences, cost-routing
// caps, and the global emergency mode.
package control

import (
	"fmt"

	"ceopilot/internal/types"
)

// Manager wraps a ControlStore with get-or-create semantics and safe
// defaults. At most one active profile exists per identity.
type Manager struct {
	store types.ControlStore
}

// NewManager creates a control manager over the given store.
func NewManager(store types.ControlStore) *Manager {
	return &Manager{store: store}
}

// Profile returns the identity's control profile, creating one with safe
// defaults (no tier cap) on first access.
func (m *Manager) Profile(identity string) (types.HumanControlProfile, error) {
	existing, err := m.store.HumanProfile(identity)
	if err != nil {
		return types.HumanControlProfile{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	profile := types.HumanControlProfile{
		IdentityKey: identity,
		UpdatedAt:   types.NowUTC(),
	}
	if err := m.store.SaveHumanProfile(profile); err != nil {
		return types.HumanControlProfile{}, err
	}
	return profile, nil
}

// SetMaxTier sets (or clears, with nil) the identity's tier ceiling.
func (m *Manager) SetMaxTier(identity string, tier *types.ModelTier) error {
	if tier != nil && !tier.Valid() {
		return fmt.Errorf("unknown model tier %q", *tier)
	}
	profile, err := m.Profile(identity)
	if err != nil {
		return err
	}
	profile.MaxModelTier = tier
	profile.UpdatedAt = types.NowUTC()
	return m.store.SaveHumanProfile(profile)
}

// ActivePreference returns the identity's routing preference if one exists
// and is active, nil otherwise.
func (m *Manager) ActivePreference(identity string) (*types.RoutingPreference, error) {
	pref, err := m.store.RoutingPreference(identity)
	if err != nil {
		return nil, err
	}
	if pref == nil || !pref.Active {
		return nil, nil
	}
	return pref, nil
}

// SetPreference stores a routing preference after tier validation.
func (m *Manager) SetPreference(pref types.RoutingPreference) error {
	if pref.MinTier != nil && !pref.MinTier.Valid() {
		return fmt.Errorf("unknown model tier %q", *pref.MinTier)
	}
	if pref.MaxTier != nil && !pref.MaxTier.Valid() {
		return fmt.Errorf("unknown model tier %q", *pref.MaxTier)
	}
	if pref.MinTier != nil && pref.MaxTier != nil && pref.MinTier.Rank() > pref.MaxTier.Rank() {
		return fmt.Errorf("preference min tier %s above max tier %s", *pref.MinTier, *pref.MaxTier)
	}
	pref.UpdatedAt = types.NowUTC()
	return m.store.SaveRoutingPreference(pref)
}

// CostCap returns the identity's cost-routing tier ceiling, nil if unset.
func (m *Manager) CostCap(identity string) (*types.ModelTier, error) {
	return m.store.CostCap(identity)
}

// SetCostCap sets (or clears, with nil) the identity's cost-routing ceiling.
func (m *Manager) SetCostCap(identity string, tier *types.ModelTier) error {
	if tier != nil && !tier.Valid() {
		return fmt.Errorf("unknown model tier %q", *tier)
	}
	return m.store.SetCostCap(identity, tier)
}

// Emergency returns the active emergency mode, nil when none is declared.
func (m *Manager) Emergency() (*types.EmergencyMode, error) {
	mode, err := m.store.Emergency()
	if err != nil {
		return nil, err
	}
	if mode == nil || !mode.Active {
		return nil, nil
	}
	return mode, nil
}

// DeclareEmergency activates the global tier ceiling.
func (m *Manager) DeclareEmergency(maxTier types.ModelTier, reason string) error {
	if !maxTier.Valid() {
		return fmt.Errorf("unknown model tier %q", maxTier)
	}
	return m.store.SetEmergency(&types.EmergencyMode{
		Active:     true,
		MaxTier:    maxTier,
		Reason:     reason,
		DeclaredAt: types.NowUTC(),
	})
}

// ClearEmergency deactivates the emergency ceiling.
func (m *Manager) ClearEmergency() error {
	return m.store.SetEmergency(nil)
}

package authz

import (
	"encoding/json"
	"fmt"
)

// RoleAssignment is a user's current role plus per-user overlays. A zero
// ExpiresAt means the assignment never expires. The mutation operations in
// the engine keep CustomGrants and CustomRevokes disjoint; the stored value
// alone does not enforce that.
type RoleAssignment struct {
	Role          Role          `json:"role"`
	CustomGrants  PermissionSet `json:"custom_grants"`
	CustomRevokes PermissionSet `json:"custom_revokes"`
	ExpiresAt     int64         `json:"expires_at"`
}

// Active reports whether the assignment is live at the given unix time.
func (a *RoleAssignment) Active(now int64) bool {
	return a.ExpiresAt == 0 || a.ExpiresAt > now
}

// Delegation transfers the base permissions of a role from delegator to
// delegatee. Custom grants, revokes, and group memberships of the delegator
// are never carried across.
type Delegation struct {
	Delegator string `json:"delegator"`
	Delegatee string `json:"delegatee"`
	Role      Role   `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

// Active reports whether the delegation is live at the given unix time.
func (d *Delegation) Active(now int64) bool {
	return d.ExpiresAt == 0 || d.ExpiresAt > now
}

// ScopedDelegation transfers exactly the listed permissions, independent of
// any role.
type ScopedDelegation struct {
	Delegator   string        `json:"delegator"`
	Delegatee   string        `json:"delegatee"`
	Permissions PermissionSet `json:"permissions"`
	ExpiresAt   int64         `json:"expires_at"`
}

// Active reports whether the scoped delegation is live at the given unix time.
func (d *ScopedDelegation) Active(now int64) bool {
	return d.ExpiresAt == 0 || d.ExpiresAt > now
}

// AclGroup is a named permission set. Its lifecycle is independent of the
// users that reference it: memberships may outlive the group, in which case
// they simply contribute nothing.
type AclGroup struct {
	Name        string        `json:"name"`
	Permissions PermissionSet `json:"permissions"`
}

// CredentialType tags a user with a verified credential for attribute-based
// policies.
type CredentialType uint32

const (
	CredentialNone CredentialType = iota
	CredentialMedicalLicense
	CredentialResearch
	CredentialEmergency
	CredentialAdmin
)

var credentialNames = map[CredentialType]string{
	CredentialNone:           "none",
	CredentialMedicalLicense: "medical_license",
	CredentialResearch:       "research_credentials",
	CredentialEmergency:      "emergency_credentials",
	CredentialAdmin:          "admin_credentials",
}

func (c CredentialType) String() string {
	if name, ok := credentialNames[c]; ok {
		return name
	}
	return fmt.Sprintf("credential(%d)", uint32(c))
}

// ParseCredentialType maps a wire name back to a CredentialType.
func ParseCredentialType(s string) (CredentialType, error) {
	for c, name := range credentialNames {
		if name == s {
			return c, nil
		}
	}
	return CredentialNone, fmt.Errorf("unknown credential type: %q", s)
}

// MarshalJSON encodes the credential type as its wire name.
func (c CredentialType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a credential type from its wire name.
func (c *CredentialType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCredentialType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SensitivityLevel is the ordinal classification of a record. Comparison is
// by ordinal value: Public < Standard < Confidential < Restricted.
type SensitivityLevel uint32

const (
	SensitivityPublic SensitivityLevel = iota
	SensitivityStandard
	SensitivityConfidential
	SensitivityRestricted
)

var sensitivityNames = map[SensitivityLevel]string{
	SensitivityPublic:       "public",
	SensitivityStandard:     "standard",
	SensitivityConfidential: "confidential",
	SensitivityRestricted:   "restricted",
}

func (s SensitivityLevel) String() string {
	if name, ok := sensitivityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sensitivity(%d)", uint32(s))
}

// ParseSensitivityLevel maps a wire name back to a SensitivityLevel.
func ParseSensitivityLevel(s string) (SensitivityLevel, error) {
	for l, name := range sensitivityNames {
		if name == s {
			return l, nil
		}
	}
	return SensitivityStandard, fmt.Errorf("unknown sensitivity level: %q", s)
}

// MarshalJSON encodes the sensitivity level as its wire name.
func (s SensitivityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a sensitivity level from its wire name.
func (s *SensitivityLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSensitivityLevel(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TimeRestrictionKind discriminates the time-restriction variants.
type TimeRestrictionKind string

const (
	TimeRestrictionNone          TimeRestrictionKind = "none"
	TimeRestrictionBusinessHours TimeRestrictionKind = "business_hours"
	TimeRestrictionHourRange     TimeRestrictionKind = "hour_range"
	TimeRestrictionDaysOfWeek    TimeRestrictionKind = "days_of_week"
)

// TimeRestriction limits when a policy is satisfiable. Hours are UTC,
// computed directly from the unix timestamp; the day-of-week mask uses bit 0
// for Sunday.
type TimeRestriction struct {
	Kind      TimeRestrictionKind `json:"kind"`
	StartHour uint32              `json:"start_hour,omitempty"`
	EndHour   uint32              `json:"end_hour,omitempty"`
	DayMask   uint32              `json:"day_mask,omitempty"`
}

// NoTimeRestriction is always satisfied.
func NoTimeRestriction() TimeRestriction {
	return TimeRestriction{Kind: TimeRestrictionNone}
}

// BusinessHours restricts to 09:00-17:59 UTC inclusive of the 17th hour.
func BusinessHours() TimeRestriction {
	return TimeRestriction{Kind: TimeRestrictionBusinessHours}
}

// HourRange restricts to [start, end] inclusive; start > end wraps overnight.
func HourRange(start, end uint32) TimeRestriction {
	return TimeRestriction{Kind: TimeRestrictionHourRange, StartHour: start, EndHour: end}
}

// DaysOfWeek restricts to the days set in mask (bit 0 = Sunday).
func DaysOfWeek(mask uint32) TimeRestriction {
	return TimeRestriction{Kind: TimeRestrictionDaysOfWeek, DayMask: mask}
}

// Satisfied evaluates the restriction against a unix timestamp interpreted
// as UTC seconds since epoch.
func (t TimeRestriction) Satisfied(ts int64) bool {
	switch t.Kind {
	case TimeRestrictionNone, "":
		return true
	case TimeRestrictionBusinessHours:
		hour := (ts / 3600) % 24
		return hour >= 9 && hour <= 17
	case TimeRestrictionHourRange:
		hour := uint32((ts / 3600) % 24)
		if t.StartHour <= t.EndHour {
			return hour >= t.StartHour && hour <= t.EndHour
		}
		// Overnight wrap, e.g. 22-6 covers 10 PM through 6 AM.
		return hour >= t.StartHour || hour <= t.EndHour
	case TimeRestrictionDaysOfWeek:
		// Epoch day 0 was a Thursday; +4 aligns day 0 with Sunday.
		day := ((ts / 86400) + 4) % 7
		return t.DayMask&(1<<uint(day)) != 0
	default:
		return false
	}
}

// PolicyConditions are the attribute checks an access policy imposes. Every
// condition is AND-ed; zero values mean "no requirement" except
// MinSensitivity, which is only consulted when the evaluation context
// carries a record ID.
type PolicyConditions struct {
	RequiredRole       Role             `json:"required_role"`
	TimeRestriction    TimeRestriction  `json:"time_restriction"`
	RequiredCredential CredentialType   `json:"required_credential"`
	MinSensitivity     SensitivityLevel `json:"min_sensitivity_level"`
	ConsentRequired    bool             `json:"consent_required"`
}

// AccessPolicy combines role membership with attribute conditions. A
// disabled policy never matches.
type AccessPolicy struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Conditions PolicyConditions `json:"conditions"`
	Enabled    bool             `json:"enabled"`
}

// PolicyContext is the ephemeral request context a policy is evaluated
// against. It is constructed per evaluation and never persisted.
type PolicyContext struct {
	User        string
	RecordID    uint64
	HasRecordID bool
	Patient     string
	CurrentTime int64
}

// ConsentType classifies what a patient consented to.
type ConsentType string

const (
	ConsentGeneral   ConsentType = "general"
	ConsentTreatment ConsentType = "treatment"
	ConsentResearch  ConsentType = "research"
	ConsentEmergency ConsentType = "emergency"
)

// ConsentGrant records a patient's consent for a grantee to access their
// records, keyed by (patient, grantee).
type ConsentGrant struct {
	Patient     string      `json:"patient"`
	Grantee     string      `json:"grantee"`
	ConsentType ConsentType `json:"consent_type"`
	GrantedAt   int64       `json:"granted_at"`
	ExpiresAt   int64       `json:"expires_at"`
	Revoked     bool        `json:"revoked"`
}

// Active reports whether the consent is usable at the given unix time.
func (c *ConsentGrant) Active(now int64) bool {
	return !c.Revoked && c.ExpiresAt > now
}

// EmergencyCondition justifies a break-glass access request.
type EmergencyCondition string

const (
	EmergencyLifeThreatening EmergencyCondition = "life_threatening"
	EmergencyUnconscious     EmergencyCondition = "unconscious"
	EmergencySurgical        EmergencyCondition = "surgical_emergency"
	EmergencyMassCasualties  EmergencyCondition = "mass_casualties"
)

// EmergencyStatus is the lifecycle state of an emergency access grant.
type EmergencyStatus string

const (
	EmergencyActive  EmergencyStatus = "active"
	EmergencyExpired EmergencyStatus = "expired"
	EmergencyRevoked EmergencyStatus = "revoked"
)

// EmergencyAccess is a time-limited break-glass grant. Unlike the rest of
// the engine's state it has an explicit expiry sweep, because expired grants
// must be visible as Expired in audit queries rather than silently absent.
type EmergencyAccess struct {
	ID          uint64             `json:"id"`
	Patient     string             `json:"patient"`
	Requester   string             `json:"requester"`
	Condition   EmergencyCondition `json:"condition"`
	Attestation string             `json:"attestation"`
	GrantedAt   int64              `json:"granted_at"`
	ExpiresAt   int64              `json:"expires_at"`
	Status      EmergencyStatus    `json:"status"`
}

// EmergencyAuditEntry is an append-only record of an emergency access
// action.
type EmergencyAuditEntry struct {
	AccessID  uint64 `json:"access_id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

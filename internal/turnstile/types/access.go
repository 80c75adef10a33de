package types

// ResultCode is the outcome of one tap at a terminal. The set is closed:
// new outcomes get new codes, existing codes never change meaning.
type ResultCode string

const (
	// Allow family.
	ResultAllow             ResultCode = "ALLOW"
	ResultAssigned          ResultCode = "ASSIGNED"
	ResultAllowAutoAssigned ResultCode = "ALLOW_AUTO_ASSIGNED"
	ResultReclaimed         ResultCode = "RECLAIMED"
	ResultDailyOK           ResultCode = "DAILY_OK"
	ResultSuperAdmin        ResultCode = "SUPER_ADMIN"

	// Deny family.
	ResultDenyExpired             ResultCode = "DENY_EXPIRED"
	ResultDenyDisabled            ResultCode = "DENY_DISABLED"
	ResultDenyGymMismatch         ResultCode = "DENY_GYM_MISMATCH"
	ResultDenyAutoAssignedExpired ResultCode = "DENY_AUTO_ASSIGNED_EXPIRED"
	ResultDenyExpiredPending      ResultCode = "DENY_EXPIRED_PENDING"
	ResultDenyReclaimMismatch     ResultCode = "DENY_RECLAIM_MISMATCH"
	ResultDenyUnknown             ResultCode = "DENY_UNKNOWN"
	ResultDenyInventory           ResultCode = "DENY_INVENTORY"

	// Control family.
	ResultIgnoredDuplicateTap ResultCode = "IGNORED_DUPLICATE_TAP"
	ResultError               ResultCode = "ERROR"
)

// Family groups result codes for feedback and accounting.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyAllow
	FamilyDeny
	FamilyControl
)

var resultFamilies = map[ResultCode]Family{
	ResultAllow:             FamilyAllow,
	ResultAssigned:          FamilyAllow,
	ResultAllowAutoAssigned: FamilyAllow,
	ResultReclaimed:         FamilyAllow,
	ResultDailyOK:           FamilyAllow,
	ResultSuperAdmin:        FamilyAllow,

	ResultDenyExpired:             FamilyDeny,
	ResultDenyDisabled:            FamilyDeny,
	ResultDenyGymMismatch:         FamilyDeny,
	ResultDenyAutoAssignedExpired: FamilyDeny,
	ResultDenyExpiredPending:      FamilyDeny,
	ResultDenyReclaimMismatch:     FamilyDeny,
	ResultDenyUnknown:             FamilyDeny,
	ResultDenyInventory:           FamilyDeny,

	ResultIgnoredDuplicateTap: FamilyControl,
	ResultError:               FamilyControl,
}

// Family returns FamilyUnknown for codes outside the closed set.
func (c ResultCode) Family() Family {
	return resultFamilies[c]
}

// Valid reports whether c belongs to the closed set.
func (c ResultCode) Valid() bool {
	_, ok := resultFamilies[c]
	return ok
}

// GrantsEntry reports whether the code lets a person through the gate.
// SUPER_ADMIN unlocks the terminal, it is not an entry.
func (c ResultCode) GrantsEntry() bool {
	return c.Family() == FamilyAllow && c != ResultSuperAdmin
}

// allCodes is the closed set in declaration order.
var allCodes = []ResultCode{
	ResultAllow, ResultAssigned, ResultAllowAutoAssigned, ResultReclaimed, ResultDailyOK, ResultSuperAdmin,
	ResultDenyExpired, ResultDenyDisabled, ResultDenyGymMismatch, ResultDenyAutoAssignedExpired,
	ResultDenyExpiredPending, ResultDenyReclaimMismatch, ResultDenyUnknown, ResultDenyInventory,
	ResultIgnoredDuplicateTap, ResultError,
}

// EntryCodes lists the codes counted as gym entries, in declaration
// order.
func EntryCodes() []ResultCode {
	var out []ResultCode
	for _, c := range allCodes {
		if c.GrantsEntry() {
			out = append(out, c)
		}
	}
	return out
}

// CheckRequest is the body of POST /access/check.
type CheckRequest struct {
	CardUID string `json:"cardUid"`
}

// CheckResponse is returned for every tap, including failures.
type CheckResponse struct {
	Result     ResultCode `json:"result"`
	Message    string     `json:"message,omitempty"`
	MemberName string     `json:"memberName,omitempty"`
	ExpiresAt  string     `json:"expiresAt,omitempty"`
}

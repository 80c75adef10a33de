package types

// MemberStatus is the dashboard view of one member.
type MemberStatus struct {
	MemberID   string     `json:"member_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	CanAccess  bool       `json:"can_access"`
	Reason     string     `json:"reason"`
	Detail     string     `json:"detail"`
	Days       int        `json:"days"`
	CardStatus CardStatus `json:"card_status"`
	CardUID    string     `json:"card_uid,omitempty"`
	ExpiresAt  string     `json:"expires_at,omitempty"`
	AsOf       string     `json:"as_of"`
}

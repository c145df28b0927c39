package models

// MembershipRole represents a member's role within a club
type MembershipRole string

const (
	RoleMember        MembershipRole = "Member"
	RoleOfficer       MembershipRole = "Officer"
	RolePresident     MembershipRole = "President"
	RoleVicePresident MembershipRole = "Vice President"
	RoleTreasurer     MembershipRole = "Treasurer"
	RoleSecretary     MembershipRole = "Secretary"
)

// AllowedRoles is the closed set of roles a membership may carry
var AllowedRoles = map[MembershipRole]bool{
	RoleMember:        true,
	RoleOfficer:       true,
	RolePresident:     true,
	RoleVicePresident: true,
	RoleTreasurer:     true,
	RoleSecretary:     true,
}

// IsValid reports whether the role is in the allowed set
func (r MembershipRole) IsValid() bool {
	return AllowedRoles[r]
}

// SessionRole is the role a caller asserts at login. Only Officer unlocks
// mutation endpoints; everything else is treated as Member.
type SessionRole string

const (
	SessionRoleMember  SessionRole = "Member"
	SessionRoleOfficer SessionRole = "Officer"
)

// VerificationStatus represents the state of a club's verification workflow
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusApproved VerificationStatus = "approved"
)

// Field length constraints
const (
	MinNameLength        = 2
	MaxNameLength        = 80
	MaxDescriptionLength = 1000
	MaxEmailLength       = 320 // RFC 3696 specification
)

// Invite defaults
const (
	DefaultInviteExpiryDays = 7
)

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RosterEntry is one denormalized membership entry inside a roster document.
// The same triple appears in the club's roster map and in the student's
// membership map.
type RosterEntry struct {
	MembershipID string         `json:"membership_id"`
	Role         MembershipRole `json:"role"`
	JoinDate     string         `json:"join_date"`
}

// RosterEntries is a JSONB map document. In a ClubRoster the keys are student
// IDs; in a StudentMembershipDoc the keys are club IDs.
type RosterEntries map[string]RosterEntry

// Scan implements the sql.Scanner interface for RosterEntries
func (re *RosterEntries) Scan(value interface{}) error {
	if value == nil {
		*re = make(RosterEntries)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RosterEntries", value)
	}

	return json.Unmarshal(bytes, re)
}

// Value implements the driver.Valuer interface for RosterEntries
func (re RosterEntries) Value() (driver.Value, error) {
	if re == nil {
		return json.Marshal(RosterEntries{})
	}
	return json.Marshal(re)
}

// GormDataType gorm common data type
func (RosterEntries) GormDataType() string {
	return "jsonb"
}

// VerificationState is the JSONB workflow record on a club. Status moves
// pending -> approved; once the club's verified flag is set there is no
// transition back.
type VerificationState struct {
	Status      VerificationStatus `json:"status"`
	RequestedBy string             `json:"requested_by"`
	RequestedAt string             `json:"requested_at"`
	Note        string             `json:"note,omitempty"`
	ApprovedBy  string             `json:"approved_by,omitempty"`
	ApprovedAt  string             `json:"approved_at,omitempty"`
}

// Scan implements the sql.Scanner interface for VerificationState
func (vs *VerificationState) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into VerificationState", value)
	}

	return json.Unmarshal(bytes, vs)
}

// Value implements the driver.Valuer interface for VerificationState
func (vs VerificationState) Value() (driver.Value, error) {
	return json.Marshal(vs)
}

// GormDataType gorm common data type
func (VerificationState) GormDataType() string {
	return "jsonb"
}

// AuthenticatedUser is the caller identity injected by the session middleware
type AuthenticatedUser struct {
	Email string      `json:"email"`
	Role  SessionRole `json:"role"`
	Name  string      `json:"name,omitempty"`
}

// IsOfficer reports whether the caller asserted the Officer session role
func (u *AuthenticatedUser) IsOfficer() bool {
	return u != nil && u.Role == SessionRoleOfficer
}

// Request/response DTOs

// CreateStudentRequest is the payload for student registration
type CreateStudentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateStudentRequest is the payload for student edits; both fields required
type UpdateStudentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StudentResponse is the API representation of a student
type StudentResponse struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// CreateClubRequest is the payload for club creation
type CreateClubRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateClubRequest is the payload for club edits; both fields required
type UpdateClubRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ClubResponse is the API representation of a club
type ClubResponse struct {
	ClubID       string             `json:"clubId"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	MemberCount  int                `json:"memberCount"`
	Verified     bool               `json:"verified"`
	Verification *VerificationState `json:"verification,omitempty"`
	CreatedAt    string             `json:"createdAt"`
}

// AddMemberRequest is the payload for adding a student to a club
type AddMemberRequest struct {
	StudentID string `json:"studentId"`
	Role      string `json:"role"`
}

// UpdateMemberRoleRequest is the payload for changing a member's role
type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

// ClubMember is a roster entry joined with the student record
type ClubMember struct {
	StudentID    string         `json:"studentId"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Role         MembershipRole `json:"role"`
	JoinDate     string         `json:"joinDate"`
	MembershipID string         `json:"membershipId"`
}

// MemberListOptions is the filter/sort contract for member listings
type MemberListOptions struct {
	Query string // case-insensitive substring on name or email
	Role  string // exact role match
	Sort  string // "name" (asc, case-insensitive) or "join_date" (desc)
}

// StudentMembershipEntry is one club entry in a student-centric listing
type StudentMembershipEntry struct {
	ClubID   string         `json:"clubId"`
	ClubName string         `json:"clubName"`
	Role     MembershipRole `json:"role"`
	JoinDate string         `json:"joinDate"`
}

// StudentWithMemberships is a student joined with all their club entries
type StudentWithMemberships struct {
	StudentID   string                   `json:"studentId"`
	Name        string                   `json:"name"`
	Email       string                   `json:"email"`
	Memberships []StudentMembershipEntry `json:"memberships"`
}

// VerificationRequestPayload is the body for a verification request
type VerificationRequestPayload struct {
	Note string `json:"note"`
}

// VerificationConfirmPayload is the body for a verification confirmation
type VerificationConfirmPayload struct {
	AdvisorCode string `json:"advisorCode"`
}

// CreateInviteRequest is the payload for generating an invite link
type CreateInviteRequest struct {
	Role        string `json:"role"`
	ExpiresDays int    `json:"expiresDays"`
}

// InviteResponse is the API representation of a generated invite
type InviteResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt"`
}

// RedeemInviteRequest is the payload for joining via an invite token
type RedeemInviteRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginRequest is the payload for the shared-secret login
type LoginRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Code  string `json:"code"`
}

// CollectionResponse wraps list results with a count
type CollectionResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

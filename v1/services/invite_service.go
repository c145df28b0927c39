package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
)

// InviteService issues and redeems registration invites. Tokens are persisted
// rows, not in-process state, so they survive restarts; expiry and used-ness
// are checked at redemption time.
type InviteService struct {
	store    *store.RecordStore
	students *StudentService
}

// NewInviteService creates a new invite service
func NewInviteService(st *store.RecordStore, students *StudentService) *InviteService {
	return &InviteService{store: st, students: students}
}

// newInviteToken returns an unguessable URL-safe token
func newInviteToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	return "inv_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateInvite creates a single-use invite granting the given session role
func (s *InviteService) GenerateInvite(caller *models.AuthenticatedUser, req *models.CreateInviteRequest) (*models.InviteResponse, error) {
	if err := requireOfficer(caller); err != nil {
		return nil, err
	}
	role := models.SessionRole(req.Role)
	if role != models.SessionRoleMember && role != models.SessionRoleOfficer {
		return nil, models.NewAppError(models.ErrKindInvalidRole, "Invite role must be Member or Officer")
	}
	days := req.ExpiresDays
	if days <= 0 {
		days = models.DefaultInviteExpiryDays
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}
	invite := &models.InviteToken{
		Token:     token,
		Role:      string(role),
		CreatedBy: caller.Email,
		ExpiresAt: time.Now().Add(time.Duration(days) * 24 * time.Hour),
	}
	if err := s.store.CreateInvite(invite); err != nil {
		return nil, err
	}

	slog.Info("Invite generated", "role", invite.Role, "createdBy", caller.Email, "expiresAt", invite.ExpiresAt)
	return &models.InviteResponse{
		Token:     invite.Token,
		Role:      invite.Role,
		ExpiresAt: invite.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// RedeemInvite registers a student against a valid token and marks the token
// used. A used or expired token reads the same as a missing one, so the
// response leaks nothing about which it was.
func (s *InviteService) RedeemInvite(token string, req *models.RedeemInviteRequest) (*models.StudentResponse, models.SessionRole, error) {
	invite, err := s.store.GetInvite(token)
	if err != nil {
		return nil, "", err
	}
	if invite.Used || invite.Expired(time.Now()) {
		return nil, "", models.NewAppError(models.ErrKindInviteNotFound, "Invalid or expired invite")
	}

	student, err := s.students.CreateStudent(&models.CreateStudentRequest{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	invite.Used = true
	invite.UsedBy = student.Email
	invite.UsedAt = &now
	if err := s.store.SaveInvite(invite); err != nil {
		return nil, "", err
	}

	slog.Info("Invite redeemed", "studentID", student.StudentID, "role", invite.Role)
	return student, models.SessionRole(invite.Role), nil
}

// PruneExpiredInvites deletes tokens past their expiry
func (s *InviteService) PruneExpiredInvites() error {
	return s.store.DeleteExpiredInvites(time.Now())
}

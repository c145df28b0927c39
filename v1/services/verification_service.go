package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
)

// VerificationService runs the two-step club verification workflow:
// unverified -> pending -> verified, with verified terminal. Confirmation
// needs a second officer distinct from the requester, or the advisor code.
type VerificationService struct {
	store       *store.RecordStore
	advisorCode string
}

// NewVerificationService creates a new verification service. advisorCode is
// the configured override secret; empty disables the advisor path.
func NewVerificationService(st *store.RecordStore, advisorCode string) *VerificationService {
	return &VerificationService{store: st, advisorCode: advisorCode}
}

// RequestVerification puts the club into the pending state. Re-requesting
// overwrites the request metadata; an already verified club is a no-op
// success.
func (s *VerificationService) RequestVerification(caller *models.AuthenticatedUser, clubID, note string) error {
	if err := requireOfficer(caller); err != nil {
		return err
	}

	club, err := s.store.GetClub(clubID)
	if err != nil {
		return err
	}
	if club.Verified {
		return nil
	}

	verification := &models.VerificationState{
		Status:      models.VerificationStatusPending,
		RequestedBy: caller.Email,
		RequestedAt: time.Now().Format(time.RFC3339),
		Note:        note,
	}
	if err := s.store.UpdateClubFields(clubID, map[string]interface{}{"verification": verification}); err != nil {
		return err
	}

	slog.Info("Club verification requested", "clubID", clubID, "requestedBy", caller.Email)
	return nil
}

// ConfirmVerification approves a pending request. The read of the
// verification state and the write of the verified flag happen inside one
// serializable transaction so two concurrent confirms conflict instead of
// both approving.
//
// When no pending request exists one is synthesized in place, so a confirm
// never fails on missing state; that lets the advisor path verify a club
// that was never formally requested.
func (s *VerificationService) ConfirmVerification(caller *models.AuthenticatedUser, clubID, advisorCode string) error {
	if err := requireOfficer(caller); err != nil {
		return err
	}

	err := s.store.WithTx(func(tx *store.RecordStore) error {
		club, err := tx.GetClub(clubID)
		if err != nil {
			return err
		}
		if club.Verified {
			return nil
		}

		verification := club.Verification
		if verification == nil || verification.Status != models.VerificationStatusPending {
			requestedBy := ""
			if verification != nil {
				requestedBy = verification.RequestedBy
			}
			verification = &models.VerificationState{
				Status:      models.VerificationStatusPending,
				RequestedBy: requestedBy,
				RequestedAt: time.Now().Format(time.RFC3339),
			}
		}

		advisorOverride := advisorCode != "" && s.advisorCode != "" &&
			strings.TrimSpace(advisorCode) == s.advisorCode
		if !advisorOverride {
			confirmer := strings.ToLower(strings.TrimSpace(caller.Email))
			requester := strings.ToLower(strings.TrimSpace(verification.RequestedBy))
			if confirmer != "" && requester != "" && confirmer == requester {
				return models.NewAppError(models.ErrKindSameRequesterConfirmer, "Second officer must be different from requester")
			}
		}

		verification.Status = models.VerificationStatusApproved
		verification.ApprovedBy = caller.Email
		verification.ApprovedAt = time.Now().Format(time.RFC3339)

		return tx.UpdateClubFields(clubID, map[string]interface{}{
			"verified":     true,
			"verification": verification,
		})
	})
	if err != nil {
		return err
	}

	slog.Info("Club verified", "clubID", clubID, "approvedBy", caller.Email)
	return nil
}

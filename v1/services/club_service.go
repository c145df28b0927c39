package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
	"github.com/campus-clubhouse/clubhouse-backend/v1/utils"
)

// ClubService handles club CRUD. Deletion cascades through the membership
// service so the mirrors and counters stay consistent.
type ClubService struct {
	store       *store.RecordStore
	memberships *MembershipService
}

// NewClubService creates a new club service
func NewClubService(st *store.RecordStore, memberships *MembershipService) *ClubService {
	return &ClubService{store: st, memberships: memberships}
}

func toClubResponse(club *models.Club) *models.ClubResponse {
	return &models.ClubResponse{
		ClubID:       club.ClubID,
		Name:         club.Name,
		Description:  club.Description,
		MemberCount:  club.MemberCount,
		Verified:     club.Verified,
		Verification: club.Verification,
		CreatedAt:    club.CreatedAt.Format(time.RFC3339),
	}
}

// nameTaken reports whether another club already uses the name,
// case-insensitively
func (s *ClubService) nameTaken(name, excludeClubID string) (bool, error) {
	clubs, err := s.store.ListClubs()
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(name)
	for _, c := range clubs {
		if c.ClubID != excludeClubID && strings.ToLower(c.Name) == lower {
			return true, nil
		}
	}
	return false, nil
}

// CreateClub creates a new club with a zero member count
func (s *ClubService) CreateClub(caller *models.AuthenticatedUser, req *models.CreateClubRequest) (*models.ClubResponse, error) {
	if err := requireOfficer(caller); err != nil {
		return nil, err
	}
	name := utils.SanitizeInput(req.Name, models.MaxNameLength)
	description := utils.SanitizeInput(req.Description, models.MaxDescriptionLength)
	if name == "" || description == "" {
		return nil, models.NewAppError(models.ErrKindInvalidInput, "Name and description required")
	}
	taken, err := s.nameTaken(name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewAppError(models.ErrKindInvalidInput, "Club name already exists")
	}

	club := &models.Club{
		ClubID:      "club_" + uuid.New().String(),
		Name:        name,
		Description: description,
		MemberCount: 0,
		Verified:    false,
	}
	if err := s.store.CreateClub(club); err != nil {
		return nil, err
	}

	slog.Info("Club created", "clubID", club.ClubID, "name", club.Name)
	return toClubResponse(club), nil
}

// GetClub retrieves a club by ID
func (s *ClubService) GetClub(clubID string) (*models.ClubResponse, error) {
	club, err := s.store.GetClub(clubID)
	if err != nil {
		return nil, err
	}
	return toClubResponse(club), nil
}

// GetClubs returns all clubs, optionally filtered by a case-insensitive
// substring over name and description
func (s *ClubService) GetClubs(search string) ([]models.ClubResponse, error) {
	clubs, err := s.store.ListClubs()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(search))

	responses := make([]models.ClubResponse, 0, len(clubs))
	for i := range clubs {
		c := &clubs[i]
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Name), q) &&
			!strings.Contains(strings.ToLower(c.Description), q) {
			continue
		}
		responses = append(responses, *toClubResponse(c))
	}
	return responses, nil
}

// UpdateClub updates a club's name and description
func (s *ClubService) UpdateClub(caller *models.AuthenticatedUser, clubID string, req *models.UpdateClubRequest) (*models.ClubResponse, error) {
	if err := requireOfficer(caller); err != nil {
		return nil, err
	}
	name := utils.SanitizeInput(req.Name, models.MaxNameLength)
	description := utils.SanitizeInput(req.Description, models.MaxDescriptionLength)
	if name == "" || description == "" {
		return nil, models.NewAppError(models.ErrKindInvalidInput, "Name and description required")
	}

	club, err := s.store.GetClub(clubID)
	if err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(name, clubID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewAppError(models.ErrKindInvalidInput, "Another club already uses that name")
	}

	if err := s.store.UpdateClubFields(clubID, map[string]interface{}{
		"name":        name,
		"description": description,
	}); err != nil {
		return nil, err
	}

	club.Name = name
	club.Description = description
	return toClubResponse(club), nil
}

// DeleteClub removes the club and cascades through all memberships and
// denormalized documents referencing it
func (s *ClubService) DeleteClub(caller *models.AuthenticatedUser, clubID string) error {
	if err := requireOfficer(caller); err != nil {
		return err
	}
	if _, err := s.store.GetClub(clubID); err != nil {
		return err
	}
	if err := s.memberships.CascadeDeleteClub(clubID); err != nil {
		return err
	}
	slog.Info("Club deleted", "clubID", clubID)
	return nil
}

package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

// ExportRosterCSV renders a verified club's roster as CSV, honoring the same
// filter and sort options as the member listing. Only officers may export,
// and only once the club is verified.
func (s *MembershipService) ExportRosterCSV(caller *models.AuthenticatedUser, clubID string, opts models.MemberListOptions) ([]byte, string, error) {
	if err := requireOfficer(caller); err != nil {
		return nil, "", err
	}
	club, err := s.store.GetClub(clubID)
	if err != nil {
		return nil, "", err
	}
	if !club.Verified {
		return nil, "", models.NewAppError(models.ErrKindForbidden, "Roster export requires a verified club")
	}

	members, err := s.ListClubMembers(clubID, opts)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"student_id", "name", "email", "role", "join_date"}); err != nil {
		return nil, "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, m := range members {
		joinDate := m.JoinDate
		if len(joinDate) > 19 {
			joinDate = joinDate[:19] // second precision, drop the zone
		}
		if err := w.Write([]string{m.StudentID, m.Name, m.Email, string(m.Role), joinDate}); err != nil {
			return nil, "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	filename := csvFilename(club.Name)
	return buf.Bytes(), filename, nil
}

// csvFilename derives a safe attachment name from the club name
func csvFilename(clubName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(clubName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" {
		name = "roster"
	}
	return name + "_roster.csv"
}

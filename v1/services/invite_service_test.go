package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

func newInviteFixture(t *testing.T) (*fixture, *InviteService) {
	f := newFixture(t)
	return f, NewInviteService(f.store, f.students)
}

func TestGenerateInvite(t *testing.T) {
	f, invites := newInviteFixture(t)

	invite, err := invites.GenerateInvite(officerCaller("officer@campus.edu"), &models.CreateInviteRequest{
		Role:        "Member",
		ExpiresDays: 3,
	})
	require.NoError(t, err)
	assert.Contains(t, invite.Token, "inv_")
	assert.Equal(t, "Member", invite.Role)

	stored, err := f.store.GetInvite(invite.Token)
	require.NoError(t, err)
	assert.False(t, stored.Used)
	assert.Equal(t, "officer@campus.edu", stored.CreatedBy)
	assert.WithinDuration(t, time.Now().Add(3*24*time.Hour), stored.ExpiresAt, time.Minute)
}

func TestGenerateInvite_DefaultExpiry(t *testing.T) {
	f, invites := newInviteFixture(t)

	invite, err := invites.GenerateInvite(officerCaller("officer@campus.edu"), &models.CreateInviteRequest{Role: "Officer"})
	require.NoError(t, err)

	stored, err := f.store.GetInvite(invite.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(models.DefaultInviteExpiryDays*24*time.Hour), stored.ExpiresAt, time.Minute)
}

func TestGenerateInvite_Validation(t *testing.T) {
	_, invites := newInviteFixture(t)

	_, err := invites.GenerateInvite(memberCaller("student@campus.edu"), &models.CreateInviteRequest{Role: "Member"})
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))

	// Membership roles like President are not session roles
	_, err = invites.GenerateInvite(officerCaller("officer@campus.edu"), &models.CreateInviteRequest{Role: "President"})
	assert.True(t, models.IsKind(err, models.ErrKindInvalidRole))
}

func TestRedeemInvite(t *testing.T) {
	f, invites := newInviteFixture(t)

	invite, err := invites.GenerateInvite(officerCaller("officer@campus.edu"), &models.CreateInviteRequest{Role: "Member"})
	require.NoError(t, err)

	student, role, err := invites.RedeemInvite(invite.Token, &models.RedeemInviteRequest{
		Name:  "Alice Lee",
		Email: "Alice@Campus.edu",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionRoleMember, role)
	assert.Equal(t, "alice@campus.edu", student.Email)

	stored, err := f.store.GetInvite(invite.Token)
	require.NoError(t, err)
	assert.True(t, stored.Used)
	assert.Equal(t, "alice@campus.edu", stored.UsedBy)
	require.NotNil(t, stored.UsedAt)

	// Second redemption fails like a missing token
	_, _, err = invites.RedeemInvite(invite.Token, &models.RedeemInviteRequest{Name: "Bob Wu", Email: "bob@campus.edu"})
	assert.True(t, models.IsKind(err, models.ErrKindInviteNotFound))
}

func TestRedeemInvite_Expired(t *testing.T) {
	f, invites := newInviteFixture(t)

	expired := &models.InviteToken{
		Token:     "inv_expired",
		Role:      "Member",
		CreatedBy: "officer@campus.edu",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.store.CreateInvite(expired))

	_, _, err := invites.RedeemInvite("inv_expired", &models.RedeemInviteRequest{Name: "Alice Lee", Email: "alice@campus.edu"})
	assert.True(t, models.IsKind(err, models.ErrKindInviteNotFound))
}

func TestRedeemInvite_UnknownToken(t *testing.T) {
	_, invites := newInviteFixture(t)

	_, _, err := invites.RedeemInvite("inv_nope", &models.RedeemInviteRequest{Name: "Alice Lee", Email: "alice@campus.edu"})
	assert.True(t, models.IsKind(err, models.ErrKindInviteNotFound))
}

func TestRedeemInvite_InvalidStudentLeavesTokenUnused(t *testing.T) {
	f, invites := newInviteFixture(t)

	invite, err := invites.GenerateInvite(officerCaller("officer@campus.edu"), &models.CreateInviteRequest{Role: "Member"})
	require.NoError(t, err)

	_, _, err = invites.RedeemInvite(invite.Token, &models.RedeemInviteRequest{Name: "Alice Lee", Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrKindInvalidInput))

	stored, err := f.store.GetInvite(invite.Token)
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

func TestPruneExpiredInvites(t *testing.T) {
	f, invites := newInviteFixture(t)

	require.NoError(t, f.store.CreateInvite(&models.InviteToken{
		Token:     "inv_old",
		Role:      "Member",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, f.store.CreateInvite(&models.InviteToken{
		Token:     "inv_fresh",
		Role:      "Member",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, invites.PruneExpiredInvites())

	remaining, err := f.store.ListInvites()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "inv_fresh", remaining[0].Token)
}

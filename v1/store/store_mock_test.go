package store

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

// setupMockDB creates a mock postgres-backed store for asserting the exact
// statements the facade issues
func setupMockDB(t *testing.T) (*RecordStore, sqlmock.Sqlmock, func()) {
	var db *sql.DB
	var mock sqlmock.Sqlmock
	var err error

	db, mock, err = sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return New(gormDB), mock, cleanup
}

func TestUpdateClubFields_IssuesSingleUpdate(t *testing.T) {
	st, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE "clubs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.UpdateClubFields("club_1", map[string]interface{}{"member_count": 3})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateClubFields_ZeroRowsMapsToNotFound(t *testing.T) {
	st, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE "clubs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.UpdateClubFields("club_missing", map[string]interface{}{"member_count": 3})
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_WrapsWritesInOneTransaction(t *testing.T) {
	st, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "clubs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "memberships"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.WithTx(func(tx *RecordStore) error {
		if err := tx.UpdateClubFields("club_1", map[string]interface{}{"member_count": 1}); err != nil {
			return err
		}
		return tx.DeleteMembershipsByClub("club_1")
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackInsteadOfCommitting(t *testing.T) {
	st, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "clubs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := st.WithTx(func(tx *RecordStore) error {
		if err := tx.UpdateClubFields("club_1", map[string]interface{}{"member_count": 1}); err != nil {
			return err
		}
		return models.NewAppError(models.ErrKindInvalidInput, "abort")
	})
	assert.True(t, models.IsKind(err, models.ErrKindInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMembershipsByClub_IssuesDelete(t *testing.T) {
	st, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM "memberships"`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	assert.NoError(t, st.DeleteMembershipsByClub("club_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

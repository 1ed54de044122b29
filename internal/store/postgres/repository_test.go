package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestGuilds_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGuilds(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM guild_settings")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{
			"guild_id", "report_channel_id", "alert_channel_id", "lobby_channel_id", "auth_role_id", "updated_at",
		}).AddRow("g1", "c-report", "c-alert", "c-lobby", "r-auth", now))

	s, err := repo.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "c-report", s.ReportChannelID)
	assert.Equal(t, "r-auth", s.AuthRoleID)
}

func TestGuilds_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGuilds(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM guild_settings")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGuilds_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGuilds(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO guild_settings")).
		WithArgs("g1", "c-report", "", "c-lobby", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &GuildSettings{
		GuildID:         "g1",
		ReportChannelID: "c-report",
		LobbyChannelID:  "c-lobby",
	})
	assert.NoError(t, err)
}

func TestRecruitments_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecruitments(db)
	created := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO recruitments")).
		WithArgs("r1", "g1", "c1", "", "u1", "Raid", 4, RecruitmentOpen).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	rec := &Recruitment{ID: "r1", GuildID: "g1", ChannelID: "c1", LeaderID: "u1", Title: "Raid", Slots: 4}
	require.NoError(t, repo.Create(context.Background(), rec))
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, RecruitmentOpen, rec.Status)
}

func TestRecruitments_SetStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "unknown id", affected: 0, wantErr: ErrNotFound},
		{name: "driver error", execErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewRecruitments(db)

			exp := mock.ExpectExec(regexp.QuoteMeta("UPDATE recruitments")).WithArgs("r1", RecruitmentClosed)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			err := repo.SetStatus(context.Background(), "r1", RecruitmentClosed)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.execErr != nil:
				assert.ErrorIs(t, err, tt.execErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecruitments_ListOpen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecruitments(db)
	now := time.Now()

	cols := []string{"id", "guild_id", "channel_id", "message_id", "leader_id", "title", "slots", "status", "created_at", "closed_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM recruitments")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r2", "g1", "c1", "m2", "u2", "Dungeon", 3, RecruitmentFull, now, nil).
			AddRow("r1", "g1", "c1", "m1", "u1", "Raid", 8, RecruitmentOpen, now.Add(-time.Hour), nil))

	recs, err := repo.ListOpen(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r2", recs[0].ID)
	assert.False(t, recs[0].ClosedAt.Valid)
}

func TestAlerts_CreateAndDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAlerts(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO alerts")).
		WithArgs("g1", "c1", "0 21 * * *", "필드 보스 출현!", true, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM alerts")).
		WithArgs(int64(7), "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM alerts")).
		WithArgs(int64(7), "g2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	a := &Alert{GuildID: "g1", ChannelID: "c1", Spec: "0 21 * * *", Message: "필드 보스 출현!", Enabled: true, CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, int64(7), a.ID)

	require.NoError(t, repo.Delete(context.Background(), "g1", 7))
	assert.ErrorIs(t, repo.Delete(context.Background(), "g2", 7), ErrNotFound)
}

func TestAlerts_ListEnabled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAlerts(db)

	cols := []string{"id", "guild_id", "channel_id", "spec", "message", "enabled", "created_by", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE enabled = true")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "g1", "c1", "@daily", "출석 체크", true, "u1", time.Now()))

	alerts, err := repo.ListEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "@daily", alerts[0].Spec)
}

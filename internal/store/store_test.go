package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeRepository struct {
	records map[string]*models.DiagnosisRecord
	gets    int
	saves   int
	err     error
}

func (f *fakeRepository) Get(_ context.Context, followupID string) (*models.DiagnosisRecord, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[followupID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepository) Save(_ context.Context, rec *models.DiagnosisRecord) error {
	f.saves++
	if f.err != nil {
		return f.err
	}
	f.records[rec.FollowupID] = rec
	return nil
}

func sampleRecord() *models.DiagnosisRecord {
	return &models.DiagnosisRecord{
		FollowupID:   "fu-1",
		UserID:       "u-1",
		FollowupType: models.FollowupTypePillar,
		Diagnosis: &models.DiagnosisResult{
			Strengths:         []string{"focus", "delegation"},
			SituationAnalysis: &models.SituationAnalysis{ProgressLevel: "good"},
		},
		CreatedAt: time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Postgres Repository Tests
// ==========================

func TestPostgresDiagnosisRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT followup_id, user_id, followup_type, diagnosis, created_at").
		WithArgs("fu-1").
		WillReturnRows(sqlmock.NewRows([]string{"followup_id", "user_id", "followup_type", "diagnosis", "created_at"}).
			AddRow("fu-1", "u-1", "workbook", []byte(`{"challenges":["time"],"followupRecommendation":{"implementationProgress":"limited"}}`), created))

	rec, err := NewPostgresDiagnosisRepository(db).Get(context.Background(), "fu-1")
	require.NoError(t, err)

	assert.Equal(t, models.FollowupTypeWorkbook, rec.FollowupType)
	assert.Equal(t, created, rec.CreatedAt)
	require.NotNil(t, rec.Diagnosis)
	assert.Equal(t, []string{"time"}, rec.Diagnosis.Challenges)
	assert.Equal(t, "limited", rec.Diagnosis.FollowupRecommendation.ImplementationProgress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDiagnosisRepository_GetNullDiagnosis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT followup_id").
		WithArgs("fu-2").
		WillReturnRows(sqlmock.NewRows([]string{"followup_id", "user_id", "followup_type", "diagnosis", "created_at"}).
			AddRow("fu-2", "u-1", "pillar", []byte(`null`), time.Now()))

	rec, err := NewPostgresDiagnosisRepository(db).Get(context.Background(), "fu-2")
	require.NoError(t, err)
	assert.Nil(t, rec.Diagnosis)
}

func TestPostgresDiagnosisRepository_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT followup_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"followup_id", "user_id", "followup_type", "diagnosis", "created_at"}))

	_, err = NewPostgresDiagnosisRepository(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDiagnosisRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := sampleRecord()
	raw, _ := json.Marshal(rec.Diagnosis)
	stored := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO followup_diagnoses").
		WithArgs("fu-1", "u-1", "pillar", raw).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(stored))

	require.NoError(t, NewPostgresDiagnosisRepository(db).Save(context.Background(), rec))
	assert.Equal(t, stored, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Cache Tests
// ==========================

func TestCachedDiagnosisRepository_ReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	inner := &fakeRepository{records: map[string]*models.DiagnosisRecord{"fu-1": sampleRecord()}}
	repo := NewCachedDiagnosisRepository(inner, client, 10*time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := repo.Get(ctx, "fu-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(DiagnosisCacheKey("fu-1")))
	assert.Equal(t, 10*time.Minute, mr.TTL(DiagnosisCacheKey("fu-1")))

	second, err := repo.Get(ctx, "fu-1")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, first.Diagnosis, second.Diagnosis)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestCachedDiagnosisRepository_NotFoundIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	inner := &fakeRepository{records: map[string]*models.DiagnosisRecord{}}
	repo := NewCachedDiagnosisRepository(inner, client, time.Minute, logger.NewNoOpLogger())

	_, err := repo.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(DiagnosisCacheKey("absent")))
}

func TestCachedDiagnosisRepository_CorruptEntryFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set(DiagnosisCacheKey("fu-1"), "{not json"))

	inner := &fakeRepository{records: map[string]*models.DiagnosisRecord{"fu-1": sampleRecord()}}
	repo := NewCachedDiagnosisRepository(inner, client, time.Minute, logger.NewNoOpLogger())

	rec, err := repo.Get(context.Background(), "fu-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", rec.UserID)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedDiagnosisRepository_RedisDownStillServes(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rec := sampleRecord()
	data, _ := json.Marshal(rec)
	key := DiagnosisCacheKey("fu-1")

	mock.ExpectGet(key).SetErr(errors.New("dial tcp: connection refused"))
	mock.ExpectSet(key, data, 5*time.Minute).SetErr(errors.New("dial tcp: connection refused"))

	inner := &fakeRepository{records: map[string]*models.DiagnosisRecord{"fu-1": rec}}
	repo := NewCachedDiagnosisRepository(inner, client, 5*time.Minute, logger.NewNoOpLogger())

	got, err := repo.Get(context.Background(), "fu-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDiagnosisRepository_SaveInvalidates(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := &fakeRepository{records: map[string]*models.DiagnosisRecord{}}
	repo := NewCachedDiagnosisRepository(inner, client, time.Minute, logger.NewNoOpLogger())

	mock.ExpectDel(DiagnosisCacheKey("fu-1")).SetVal(1)

	require.NoError(t, repo.Save(context.Background(), sampleRecord()))
	assert.Equal(t, 1, inner.saves)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDiagnosisRepository_SaveErrorSkipsInvalidation(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := &fakeRepository{records: map[string]*models.DiagnosisRecord{}, err: errors.New("pq: connection reset")}
	repo := NewCachedDiagnosisRepository(inner, client, time.Minute, logger.NewNoOpLogger())

	err := repo.Save(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

func newReportFixture(t *testing.T) (*gradingFixture, ReportService, *miniredis.Miniredis) {
	t.Helper()
	f := newGradingFixture(t)

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewReportService(f.submissions, repository.NewChildRepository(f.db), client, time.Minute, testLogger())
	return f, svc, server
}

func TestReportServiceGenerateCachesReport(t *testing.T) {
	f, svc, server := newReportFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{4, 0}, []int{4, 2}, nil)

	report, err := svc.Generate(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, "Arithmetic", report.AssessmentTitle)
	require.Equal(t, 4, report.MarksObtained)
	require.Equal(t, 66.67, report.Percentage)
	require.Equal(t, 1, report.CorrectCount)
	require.Zero(t, report.PendingCount)
	require.True(t, server.Exists(reportCacheKey(submission.ID)))
	require.Equal(t, time.Minute, server.TTL(reportCacheKey(submission.ID)))

	cached, err := svc.Get(ctx, submission.ID, parentActor())
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, report.Percentage, cached.Percentage)
}

func TestReportServiceRebuildsStaleCache(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{1}, []int{5}, map[int]bool{0: true})

	pending, err := svc.Generate(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, 1, pending.PendingCount)

	_, err = f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{submission.Items[0].ID: 5}}, teacherActor())
	require.NoError(t, err)

	fresh, err := svc.Get(ctx, submission.ID, teacherActor())
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, 5, fresh.MarksObtained)
	require.Equal(t, "graded", fresh.Status)
	require.Zero(t, fresh.PendingCount)
}

func TestReportServiceIgnoresCorruptCache(t *testing.T) {
	f, svc, server := newReportFixture(t)
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{2}, []int{2}, nil)
	require.NoError(t, server.Set(reportCacheKey(submission.ID), "{not json"))

	report, err := svc.Get(context.Background(), submission.ID, parentActor())
	require.NoError(t, err)
	require.False(t, report.CacheHit)
	require.Equal(t, 100.0, report.Percentage)
}

func TestReportServiceAccessControl(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{2}, []int{2}, nil)

	_, err := svc.Get(ctx, submission.ID, ActivityActor{ID: 31, Role: "parent"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, 5150, teacherActor())
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = svc.Generate(ctx, 5150)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestReportServiceWorksWithoutCache(t *testing.T) {
	f := newGradingFixture(t)
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{0}, []int{4}, nil)
	svc := NewReportService(f.submissions, repository.NewChildRepository(f.db), nil, time.Minute, testLogger())

	report, err := svc.Get(context.Background(), submission.ID, parentActor())
	require.NoError(t, err)
	require.Zero(t, report.Percentage)
	require.Zero(t, report.CorrectCount)
}

package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/grading"
	"github.com/noah-isme/gema-assessment-api/internal/jobs"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/pkg/ai"
)

func mixedAnswers() map[int]json.RawMessage {
	return map[int]json.RawMessage{
		0: json.RawMessage(`"A"`),
		1: json.RawMessage(`"Multiply the top and bottom by the same number."`),
	}
}

func TestSubmissionServiceSubmitThenManualGradeEndToEnd(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedMixedAssessment(t, f.db, false)

	submitted, err := f.submit.Submit(ctx, assessment.ID, dto.SubmitAssessmentRequest{
		ChildID:   f.child.ID,
		Answers:   mixedAnswers(),
		TimeSpent: map[int]int{0: 12, 1: 240},
	}, parentActor())
	require.NoError(t, err)
	require.Equal(t, 15, submitted.TotalMarks)
	require.Equal(t, 5, submitted.MarksObtained)
	require.Equal(t, models.SubmissionStatusPending, submitted.Status)
	require.Equal(t, 1, submitted.RetakeNumber)
	require.Nil(t, submitted.GradedAt)
	require.Len(t, submitted.Items, 2)
	require.Equal(t, 240, submitted.Items[1].TimeSpent)
	require.True(t, submitted.Items[1].PendingReview)
	require.Nil(t, submitted.Items[1].IsCorrect)
	require.Empty(t, f.queue.ofType(jobs.TypeReportGenerate))

	tasks, err := f.tasks.ListOpen(ctx, teacherActor())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, TaskTypeGradeSubmission, tasks[0].Type)
	require.Equal(t, teacherUserID, *tasks[0].AssignedTo)

	essayID := submitted.Items[1].ID
	graded, err := f.manual.Apply(ctx, submitted.ID, dto.ManualGradeRequest{
		Items:    map[uint]float64{essayID: 8},
		Feedback: map[uint]string{essayID: "Good explanation <b>with</b> example"},
	}, teacherActor())
	require.NoError(t, err)
	require.Equal(t, []uint{essayID}, graded.Applied)
	require.Empty(t, graded.Skipped)
	require.Equal(t, 13, graded.Submission.MarksObtained)
	require.Equal(t, models.SubmissionStatusGraded, graded.Submission.Status)
	require.NotNil(t, graded.Submission.GradedAt)
	require.Equal(t, "Good explanation with example", graded.Submission.Items[1].Feedback)
	require.False(t, graded.Submission.Items[1].PendingReview)
	require.Len(t, graded.Submission.History, 1)

	require.Len(t, f.queue.ofType(jobs.TypeReportGenerate), 1)
	notifications := f.queue.ofType(jobs.TypeNotificationSend)
	require.Len(t, notifications, 1)
	var payload jobs.NotificationPayload
	require.NoError(t, notifications[0].Decode(&payload))
	require.Equal(t, parentUserID, payload.UserID)
	require.Equal(t, "Assessment Graded: Fractions", payload.Title)

	tasks, err = f.tasks.ListOpen(ctx, teacherActor())
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestSubmissionServiceAutoGradedEnqueuesReport(t *testing.T) {
	f := newGradingFixture(t)
	assessment := seedAutoAssessment(t, f.db)

	resp, err := f.submit.Submit(context.Background(), assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: map[int]json.RawMessage{0: json.RawMessage(`42`), 1: json.RawMessage(`" paris "`)},
	}, parentActor())
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, resp.Status)
	require.Equal(t, 6, resp.MarksObtained)
	require.NotNil(t, resp.GradedAt)
	require.Len(t, f.queue.ofType(jobs.TypeReportGenerate), 1)
}

func TestSubmissionServiceRejectsRetakeWhenDisallowed(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedMixedAssessment(t, f.db, false)
	req := dto.SubmitAssessmentRequest{ChildID: f.child.ID, Answers: mixedAnswers()}

	_, err := f.submit.Submit(ctx, assessment.ID, req, parentActor())
	require.NoError(t, err)

	_, err = f.submit.Submit(ctx, assessment.ID, req, parentActor())
	require.ErrorIs(t, err, ErrRetakeNotAllowed)

	count, err := f.submissions.CountForChild(ctx, assessment.ID, f.child.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

// collidingSubmissions behaves as if another request inserted the same
// retake number between the count and the insert.
type collidingSubmissions struct {
	repository.SubmissionRepository
}

func (collidingSubmissions) CreateAttempt(context.Context, uint, uint, repository.AttemptBuilder) (models.Submission, error) {
	return models.Submission{}, repository.ErrConflict
}

func TestSubmissionServiceMapsAttemptCollision(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	submit := NewSubmissionService(SubmissionDependencies{
		Assessments: repository.NewAssessmentRepository(f.db),
		Submissions: collidingSubmissions{f.submissions},
		Children:    repository.NewChildRepository(f.db),
		Registry:    grading.NewRegistry(),
		Validator:   testValidator(),
	}, testLogger())
	req := dto.SubmitAssessmentRequest{ChildID: f.child.ID, Answers: mixedAnswers()}

	retakes := seedMixedAssessment(t, f.db, true)
	_, err := submit.Submit(ctx, retakes.ID, req, parentActor())
	require.ErrorIs(t, err, ErrSubmissionConflict)

	single := seedMixedAssessment(t, f.db, false)
	_, err = submit.Submit(ctx, single.ID, req, parentActor())
	require.ErrorIs(t, err, ErrRetakeNotAllowed)
}

func TestSubmissionServiceNumbersRetakes(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedMixedAssessment(t, f.db, true)
	req := dto.SubmitAssessmentRequest{ChildID: f.child.ID, Answers: mixedAnswers()}

	first, err := f.submit.Submit(ctx, assessment.ID, req, parentActor())
	require.NoError(t, err)
	second, err := f.submit.Submit(ctx, assessment.ID, req, parentActor())
	require.NoError(t, err)

	require.Equal(t, 1, first.RetakeNumber)
	require.Equal(t, 2, second.RetakeNumber)
}

func TestSubmissionServiceRejectsStranger(t *testing.T) {
	f := newGradingFixture(t)
	assessment := seedMixedAssessment(t, f.db, false)

	_, err := f.submit.Submit(context.Background(), assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: mixedAnswers(),
	}, ActivityActor{ID: 777, Role: "parent"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSubmissionServiceUnknownAssessment(t *testing.T) {
	f := newGradingFixture(t)

	_, err := f.submit.Submit(context.Background(), 404, dto.SubmitAssessmentRequest{ChildID: f.child.ID}, parentActor())
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestSubmissionServiceConfigurationErrorStoresNothing(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := models.Assessment{
		Title: "Broken",
		Questions: []models.AssessmentQuestion{
			{OrderPosition: 1, Type: "mcq", Marks: 2, Payload: datatypes.JSON(`{"options":[{"id":"A","is_correct":true}]}`)},
			{OrderPosition: 2, Type: "hotspot", Marks: 3},
		},
	}
	require.NoError(t, f.db.Create(&assessment).Error)

	_, err := f.submit.Submit(ctx, assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: map[int]json.RawMessage{0: json.RawMessage(`"A"`)},
	}, parentActor())
	require.ErrorIs(t, err, grading.ErrConfiguration)

	count, err := f.submissions.CountForChild(ctx, assessment.ID, f.child.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmissionServiceAnswerShapeMismatch(t *testing.T) {
	f := newGradingFixture(t)
	assessment := seedMixedAssessment(t, f.db, false)

	_, err := f.submit.Submit(context.Background(), assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: map[int]json.RawMessage{0: json.RawMessage(`{"colour":"red"}`)},
	}, parentActor())
	require.ErrorIs(t, err, grading.ErrAnswerShape)
}

func TestSubmissionServiceStoresEssayAdvisoryWithoutScoring(t *testing.T) {
	f := newGradingFixture(t)
	advisor := &stubAdvisor{suggestion: ai.EssaySuggestion{SuggestedMarks: 7, Feedback: "Solid", Confidence: 0.6, Model: "test"}}
	f.withAdvisor(t, advisor)
	assessment := seedMixedAssessment(t, f.db, false)

	resp, err := f.submit.Submit(context.Background(), assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: mixedAnswers(),
	}, parentActor())
	require.NoError(t, err)
	require.Equal(t, 1, advisor.calls)
	require.Equal(t, 5, resp.MarksObtained)
	require.Equal(t, models.SubmissionStatusPending, resp.Status)

	stored, err := f.submissions.GetItem(context.Background(), resp.Items[1].ID)
	require.NoError(t, err)
	require.Zero(t, *stored.MarksAwarded)
	suggestion, ok := stored.GradingMetadata["ai_suggestion"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, 7.0, metadataNumber(t, suggestion["suggested_marks"]))
}

func TestSubmissionServiceAdvisorFailureIsSwallowed(t *testing.T) {
	f := newGradingFixture(t)
	f.withAdvisor(t, &stubAdvisor{err: errAdvisorDown})
	assessment := seedMixedAssessment(t, f.db, false)

	resp, err := f.submit.Submit(context.Background(), assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: mixedAnswers(),
	}, parentActor())
	require.NoError(t, err)
	require.NotContains(t, resp.Items[1].GradingMetadata, "ai_suggestion")
}

func TestSubmissionServiceQueueFailureDoesNotFailSubmit(t *testing.T) {
	f := newGradingFixture(t)
	f.queue.err = errAdvisorDown
	assessment := seedAutoAssessment(t, f.db)

	resp, err := f.submit.Submit(context.Background(), assessment.ID, dto.SubmitAssessmentRequest{
		ChildID: f.child.ID,
		Answers: map[int]json.RawMessage{0: json.RawMessage(`41`)},
	}, parentActor())
	require.NoError(t, err)
	require.Equal(t, 0, resp.MarksObtained)
	require.NotZero(t, resp.ID)
}

func TestSubmissionServiceGetChecksOwnership(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	resp, err := f.submit.Submit(ctx, assessment.ID, dto.SubmitAssessmentRequest{ChildID: f.child.ID}, parentActor())
	require.NoError(t, err)
	require.Equal(t, "{\"no_answer\":true}", string(resp.Items[0].Answer))

	_, err = f.submit.Get(ctx, resp.ID, ActivityActor{ID: 123, Role: "parent"})
	require.ErrorIs(t, err, ErrForbidden)

	got, err := f.submit.Get(ctx, resp.ID, teacherActor())
	require.NoError(t, err)
	require.Equal(t, resp.ID, got.ID)

	_, err = f.submit.Get(ctx, 9999, teacherActor())
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/jobs"
	"github.com/noah-isme/gema-assessment-api/internal/models"
)

func TestManualGradingRecomputesAggregateAndStatus(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{5, 0, 3}, []int{5, 5, 5}, map[int]bool{1: true})
	require.Equal(t, models.SubmissionStatusPending, submission.Status)
	require.Equal(t, 8, submission.MarksObtained)

	reviewed := submission.Items[1].ID
	comment := "  Nice work <script>alert(1)</script>"
	resp, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{
		Items:          map[uint]float64{reviewed: 4},
		OverallComment: &comment,
	}, teacherActor())
	require.NoError(t, err)

	require.Equal(t, []uint{reviewed}, resp.Applied)
	require.Equal(t, 12, resp.Submission.MarksObtained)
	require.Equal(t, models.SubmissionStatusGraded, resp.Submission.Status)
	require.NotNil(t, resp.Submission.GradedBy)
	require.Equal(t, teacherUserID, *resp.Submission.GradedBy)
	require.Equal(t, "Nice work", resp.Submission.OverallComment)

	item := resp.Submission.Items[1]
	require.Equal(t, 4.0, *item.MarksAwarded)
	require.True(t, *item.IsCorrect)
	require.Equal(t, true, item.GradingMetadata["manually_graded"])
	require.Equal(t, "manual", item.GradingMetadata["grading_method"])
	require.Equal(t, 0.0, metadataNumber(t, item.GradingMetadata["original_ai_grade"]))
	require.Equal(t, false, item.GradingMetadata["grade_changed_due_to_flag"])

	require.Len(t, resp.Submission.History, 1)
	require.Equal(t, 4.0, resp.Submission.History[0].Marks)
	require.Equal(t, 0.0, *resp.Submission.History[0].PreviousMarks)

	require.Len(t, f.activity.entries, 1)
	require.Equal(t, "submission.manually_graded", f.activity.entries[0].Action)
	require.Len(t, f.queue.ofType(jobs.TypeReportGenerate), 1)
}

func TestManualGradingKeepsFirstOriginalGrade(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{2}, []int{5}, map[int]bool{0: true})
	itemID := submission.Items[0].ID

	_, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{itemID: 4}}, teacherActor())
	require.NoError(t, err)

	_, err = f.flags.File(ctx, dto.GradingFlagCreateRequest{
		SubmissionItemID: itemID,
		ChildID:          f.child.ID,
		Reason:           "incorrect_grade",
		Explanation:      "Please look again",
	}, parentActor())
	require.NoError(t, err)

	resp, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{itemID: 3}}, teacherActor())
	require.NoError(t, err)
	require.Equal(t, []uint{itemID}, resp.Applied)
	require.Equal(t, 3, resp.Submission.MarksObtained)
	require.Equal(t, 2.0, metadataNumber(t, resp.Submission.Items[0].GradingMetadata["original_ai_grade"]))
	require.Len(t, resp.Submission.History, 2)
}

func TestManualGradingSettlesReviewedItem(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{0, 3}, []int{5, 5}, map[int]bool{0: true})
	essay := submission.Items[0].ID

	first, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{essay: 4}}, teacherActor())
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, first.Submission.Status)
	require.True(t, first.Submission.Items[0].GradingMetadata["requires_human_review"] == true)

	resp, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{essay: 1}}, teacherActor())
	require.NoError(t, err)
	require.Empty(t, resp.Applied)
	require.Equal(t, []dto.SkippedItem{{ItemID: essay, Reason: dto.SkipReasonAlreadyFinal}}, resp.Skipped)
	require.Equal(t, 7, resp.Submission.MarksObtained)
	require.Equal(t, 4.0, *resp.Submission.Items[0].MarksAwarded)
	require.Len(t, resp.Submission.History, 1)
}

func TestResolveFlagWithGradeRollsBackWhenFlagClosedConcurrently(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{0}, []int{5}, map[int]bool{0: true})
	itemID := submission.Items[0].ID

	filed, err := f.flags.File(ctx, dto.GradingFlagCreateRequest{
		SubmissionItemID: itemID,
		ChildID:          f.child.ID,
		Reason:           "missed_content",
		Explanation:      "The second paragraph answers it",
	}, parentActor())
	require.NoError(t, err)

	stale, err := f.flagsRepo.GetByID(ctx, filed.ID)
	require.NoError(t, err)

	dismissed := stale
	reviewer := uint(1)
	dismissed.Status = models.GradingFlagStatusDismissed
	dismissed.ReviewedBy = &reviewer
	dismissed.OpenMarker = nil
	closed, err := f.flagsRepo.ClosePending(ctx, dismissed)
	require.NoError(t, err)
	require.True(t, closed)

	_, err = f.manual.ResolveFlagWithGrade(ctx, stale, 3, "regraded", teacherActor())
	require.ErrorIs(t, err, ErrFlagNotPending)

	item, err := f.submissions.GetItem(ctx, itemID)
	require.NoError(t, err)
	require.Zero(t, *item.MarksAwarded)
	require.False(t, item.ManuallyGraded())

	var history int64
	require.NoError(t, f.db.Model(&models.SubmissionGradeHistory{}).Where("submission_item_id = ?", itemID).Count(&history).Error)
	require.Zero(t, history)
}

func TestManualGradingSkipsInvalidEntriesBestEffort(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{5, 0, 3}, []int{5, 5, 5}, map[int]bool{1: true, 2: true})

	settled := submission.Items[0].ID
	overMax := submission.Items[1].ID
	valid := submission.Items[2].ID

	resp, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{
		Items: map[uint]float64{
			settled: 1,
			overMax: 7,
			valid:   2.5,
			99999:   1,
		},
	}, teacherActor())
	require.NoError(t, err)

	require.Equal(t, []uint{valid}, resp.Applied)
	require.ElementsMatch(t, []dto.SkippedItem{
		{ItemID: settled, Reason: dto.SkipReasonAlreadyFinal},
		{ItemID: overMax, Reason: dto.SkipReasonExceedsMax},
		{ItemID: 99999, Reason: dto.SkipReasonNotFound},
	}, resp.Skipped)

	// 5 + 0 + round(2.5)
	require.Equal(t, 8, resp.Submission.MarksObtained)
	require.Equal(t, models.SubmissionStatusPending, resp.Submission.Status)
	require.Equal(t, 5.0, *resp.Submission.Items[0].MarksAwarded)
	require.Nil(t, resp.Submission.GradedAt)
	require.Empty(t, f.queue.ofType(jobs.TypeReportGenerate))
}

func TestManualGradingNothingAppliedLeavesSubmission(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{5}, []int{5}, nil)

	resp, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{submission.Items[0].ID: 0}}, teacherActor())
	require.NoError(t, err)
	require.Empty(t, resp.Applied)
	require.Len(t, resp.Skipped, 1)
	require.Equal(t, 5, resp.Submission.MarksObtained)
	require.Equal(t, models.SubmissionStatusGraded, resp.Submission.Status)
	require.Empty(t, f.activity.entries)
}

func TestManualGradingOpenFlagAllowsOverwrite(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	assessment := seedAutoAssessment(t, f.db)
	submission := seedGradedSubmission(t, f.db, assessment.ID, f.child.ID, []float64{5, 2}, []int{5, 5}, nil)
	disputed := submission.Items[1].ID

	flag, err := f.flags.File(ctx, dto.GradingFlagCreateRequest{
		SubmissionItemID: disputed,
		ChildID:          f.child.ID,
		Reason:           "partial_credit_issue",
		Explanation:      "My working was correct",
	}, parentActor())
	require.NoError(t, err)

	resp, err := f.manual.Apply(ctx, submission.ID, dto.ManualGradeRequest{Items: map[uint]float64{disputed: 4}}, teacherActor())
	require.NoError(t, err)
	require.Equal(t, []uint{disputed}, resp.Applied)
	require.Equal(t, 9, resp.Submission.MarksObtained)
	require.Equal(t, true, resp.Submission.Items[1].GradingMetadata["grade_changed_due_to_flag"])
	require.NotNil(t, resp.Submission.History[0].FlagID)
	require.Equal(t, flag.ID, *resp.Submission.History[0].FlagID)

	stored, err := f.flagsRepo.GetByID(ctx, flag.ID)
	require.NoError(t, err)
	require.Equal(t, models.GradingFlagStatusResolved, stored.Status)
	require.True(t, stored.GradeChanged)
	require.Equal(t, 4.0, *stored.FinalGrade)
	require.Nil(t, stored.OpenMarker)

	tasks, err := f.tasks.ListOpen(ctx, ActivityActor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestManualGradingUnknownSubmission(t *testing.T) {
	f := newGradingFixture(t)

	_, err := f.manual.Apply(context.Background(), 4242, dto.ManualGradeRequest{Items: map[uint]float64{1: 1}}, teacherActor())
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestManualGradingValidatesBatch(t *testing.T) {
	f := newGradingFixture(t)

	_, err := f.manual.Apply(context.Background(), 1, dto.ManualGradeRequest{}, teacherActor())
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/grading"
	"github.com/noah-isme/gema-assessment-api/internal/jobs"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/pkg/ai"
)

const (
	parentUserID  = uint(9)
	teacherUserID = uint(50)
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}

// metadataNumber reads a number back from a JSON column. Stored maps decode
// numbers as json.Number; maps built in memory hold float64.
func metadataNumber(t *testing.T, value interface{}) float64 {
	t.Helper()
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		require.NoError(t, err)
		return f
	case float64:
		return v
	default:
		require.Failf(t, "not a number", "got %T (%v)", value, value)
		return 0
	}
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) ofType(t jobs.Type) []jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []jobs.Job
	for _, job := range q.jobs {
		if job.Type == t {
			out = append(out, job)
		}
	}
	return out
}

type stubAdvisor struct {
	suggestion ai.EssaySuggestion
	err        error
	calls      int
}

func (a *stubAdvisor) Suggest(ctx context.Context, input ai.EssayInput) (ai.EssaySuggestion, error) {
	a.calls++
	if a.err != nil {
		return ai.EssaySuggestion{}, a.err
	}
	return a.suggestion, nil
}

var errAdvisorDown = errors.New("advisor unavailable")

// gradingFixture wires real repositories over SQLite with recording collaborators.
type gradingFixture struct {
	db          *gorm.DB
	queue       *recordingQueue
	advisor     *stubAdvisor
	submissions repository.SubmissionRepository
	flagsRepo   repository.GradingFlagRepository
	tasksRepo   repository.AdminTaskRepository
	activity    *memoryActivityRepo
	submit      SubmissionService
	manual      ManualGradingService
	flags       GradingFlagService
	tasks       TaskService
	child       models.Child
}

func newGradingFixture(t *testing.T) *gradingFixture {
	t.Helper()
	db := setupServiceDB(t)
	validate := testValidator()

	f := &gradingFixture{
		db:          db,
		queue:       &recordingQueue{},
		submissions: repository.NewSubmissionRepository(db),
		flagsRepo:   repository.NewGradingFlagRepository(db),
		tasksRepo:   repository.NewAdminTaskRepository(db),
		activity:    &memoryActivityRepo{},
	}

	children := repository.NewChildRepository(db)
	f.tasks = NewTaskService(f.tasksRepo, testLogger())
	activity := NewActivityService(f.activity, testLogger())

	f.submit = NewSubmissionService(SubmissionDependencies{
		Assessments: repository.NewAssessmentRepository(db),
		Submissions: f.submissions,
		Children:    children,
		Registry:    grading.NewRegistry(),
		Queue:       f.queue,
		Tasks:       f.tasks,
		Validator:   validate,
	}, testLogger())
	f.manual = NewManualGradingService(f.submissions, f.tasks, f.queue, activity, validate, testLogger())
	f.flags = NewGradingFlagService(f.flagsRepo, f.submissions, children, f.manual, f.tasks, activity, validate, testLogger())

	f.child = models.Child{UserID: parentUserID, Name: "Ada", TeacherID: ptrUint(teacherUserID)}
	require.NoError(t, db.Create(&f.child).Error)
	return f
}

func (f *gradingFixture) withAdvisor(t *testing.T, advisor *stubAdvisor) {
	t.Helper()
	f.advisor = advisor
	f.submit = NewSubmissionService(SubmissionDependencies{
		Assessments: repository.NewAssessmentRepository(f.db),
		Submissions: f.submissions,
		Children:    repository.NewChildRepository(f.db),
		Queue:       f.queue,
		Tasks:       f.tasks,
		Advisor:     advisor,
		Validator:   testValidator(),
	}, testLogger())
}

// seedMixedAssessment creates an MCQ worth 5 followed by an essay worth 10.
func seedMixedAssessment(t *testing.T, db *gorm.DB, retakeAllowed bool) models.Assessment {
	t.Helper()
	assessment := models.Assessment{
		Title:         "Fractions",
		RetakeAllowed: retakeAllowed,
		Questions: []models.AssessmentQuestion{
			{OrderPosition: 1, Type: "mcq", Prompt: "Which is a half?", Marks: 5, Payload: datatypes.JSON(`{"options":[{"id":"A","text":"1/2","is_correct":true},{"id":"B","text":"1/3"}]}`)},
			{OrderPosition: 2, Type: "essay", Prompt: "Explain equivalent fractions", Marks: 10, Payload: datatypes.JSON(`{"rubric":"Mention multiplying numerator and denominator"}`)},
		},
	}
	require.NoError(t, db.Create(&assessment).Error)
	return assessment
}

func seedAutoAssessment(t *testing.T, db *gorm.DB) models.Assessment {
	t.Helper()
	assessment := models.Assessment{
		Title: "Arithmetic",
		Questions: []models.AssessmentQuestion{
			{OrderPosition: 1, Type: "numeric", Prompt: "7 x 6", Marks: 4, Payload: datatypes.JSON(`{"correct_value":42}`)},
			{OrderPosition: 2, Type: "short_answer", Prompt: "Capital of France", Marks: 2, Payload: datatypes.JSON(`{"accepted_answers":["Paris"]}`)},
		},
	}
	require.NoError(t, db.Create(&assessment).Error)
	return assessment
}

// seedGradedSubmission stores a submission directly. Items listed in review
// carry requires_human_review.
func seedGradedSubmission(t *testing.T, db *gorm.DB, assessmentID, childID uint, marks []float64, possible []int, review map[int]bool) models.Submission {
	t.Helper()
	submission := models.Submission{
		AssessmentID: assessmentID,
		ChildID:      childID,
		UserID:       parentUserID,
		RetakeNumber: 1,
		Status:       models.SubmissionStatusGraded,
	}
	awardedValues := make([]float64, 0, len(marks))
	for i := range marks {
		awarded := marks[i]
		awardedValues = append(awardedValues, awarded)
		submission.TotalMarks += possible[i]
		if review[i] {
			submission.Status = models.SubmissionStatusPending
		}
		correct := awarded > 0
		submission.Items = append(submission.Items, models.SubmissionItem{
			QuestionIndex:   i,
			QuestionType:    "numeric",
			MarksAwarded:    &awarded,
			IsCorrect:       &correct,
			MarksPossible:   possible[i],
			GradingMetadata: datatypes.JSONMap{"requires_human_review": review[i]},
		})
	}
	submission.MarksObtained = grading.SumMarks(awardedValues)
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func parentActor() ActivityActor {
	return ActivityActor{ID: parentUserID, Role: "parent"}
}

func teacherActor() ActivityActor {
	return ActivityActor{ID: teacherUserID, Role: "teacher"}
}

package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedAssessment(t *testing.T, db *gorm.DB, retakeAllowed bool) models.Assessment {
	t.Helper()
	assessment := models.Assessment{
		Title:         "Fractions",
		RetakeAllowed: retakeAllowed,
		Questions: []models.AssessmentQuestion{
			{OrderPosition: 2, Type: "essay", Prompt: "Explain", Marks: 10},
			{OrderPosition: 1, Type: "mcq", Prompt: "Pick", Marks: 5, Payload: datatypes.JSON(`{"options":[{"id":"A","is_correct":true},{"id":"B"}]}`)},
		},
	}
	require.NoError(t, db.Create(&assessment).Error)
	return assessment
}

func seedSubmission(t *testing.T, db *gorm.DB, assessmentID, childID uint, marks []float64, possible []int) models.Submission {
	t.Helper()
	submission := models.Submission{
		AssessmentID: assessmentID,
		ChildID:      childID,
		UserID:       1,
		RetakeNumber: 1,
		Status:       models.SubmissionStatusGraded,
	}
	for i := range marks {
		awarded := marks[i]
		submission.TotalMarks += possible[i]
		submission.MarksObtained += int(awarded)
		submission.Items = append(submission.Items, models.SubmissionItem{
			QuestionIndex:   i,
			QuestionType:    "numeric",
			MarksAwarded:    &awarded,
			MarksPossible:   possible[i],
			GradingMetadata: datatypes.JSONMap{"requires_human_review": false},
		})
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

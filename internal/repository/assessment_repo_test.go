package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

func TestAssessmentRepositoryOrdersQuestionsAndPrefersBankDefinition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db)

	bank := models.Question{Type: "numeric", Prompt: "2+2", Marks: 3, Payload: datatypes.JSON(`{"correct_value":4}`)}
	require.NoError(t, db.Create(&bank).Error)

	assessment := seedAssessment(t, db, false)
	linked := models.AssessmentQuestion{AssessmentID: assessment.ID, QuestionID: &bank.ID, OrderPosition: 3}
	require.NoError(t, db.Create(&linked).Error)

	loaded, err := repo.GetWithQuestions(context.Background(), assessment.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Questions, 3)
	require.Equal(t, "mcq", loaded.Questions[0].Type)
	require.Equal(t, "essay", loaded.Questions[1].Type)

	qType, prompt, marks, _ := loaded.Questions[2].Definition()
	require.Equal(t, "numeric", qType)
	require.Equal(t, "2+2", prompt)
	require.Equal(t, 3, marks)
}

package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Child{},
		&Question{},
		&Assessment{},
		&AssessmentQuestion{},
		&Submission{},
		&SubmissionItem{},
		&SubmissionGradeHistory{},
		&GradingFlag{},
		&AdminTask{},
		&Notification{},
		&ActivityLog{},
	}
}

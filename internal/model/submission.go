package model

import (
	"coder_assessment_backend/internal/assessment"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TestSubmission 整卷提交记录，一次作答只对应一条
// swagger:model TestSubmission
type TestSubmission struct {
	UUIDBase
	AttemptID        string         `gorm:"uniqueIndex;type:varchar(36)" json:"attemptId"`
	TestID           string         `gorm:"index;type:varchar(36)" json:"testId"`
	LearnerID        string         `gorm:"index;size:64" json:"learnerId"`
	CourseID         string         `gorm:"size:64;index" json:"courseId"`
	Results          datatypes.JSON `gorm:"type:json" json:"results"`
	Score            int            `gorm:"default:0" json:"score"`
	MaxScore         int            `gorm:"default:0" json:"maxScore"`
	SubmittedAt      time.Time      `json:"submittedAt"`
	RemainingSeconds *int           `json:"remainingSeconds"`
	Trigger          string         `gorm:"size:20;default:'manual'" json:"trigger"` // manual, timeout
	ArchiveURL       string         `gorm:"size:512" json:"archiveUrl,omitempty"`
}

func (TestSubmission) TableName() string {
	return "test_submissions"
}

func NewTestSubmission(p assessment.SubmissionPayload) (*TestSubmission, error) {
	results, err := json.Marshal(p.Results)
	if err != nil {
		return nil, err
	}
	return &TestSubmission{
		AttemptID:        p.AttemptID,
		TestID:           p.TestID,
		LearnerID:        p.LearnerID,
		CourseID:         p.CourseID,
		Results:          datatypes.JSON(results),
		Score:            p.Score,
		MaxScore:         p.MaxScore,
		SubmittedAt:      p.SubmittedAt.UTC(),
		RemainingSeconds: p.RemainingSeconds,
		Trigger:          string(p.Trigger),
	}, nil
}

func (s *TestSubmission) Receipt() assessment.SubmissionReceipt {
	return assessment.SubmissionReceipt{
		ID:          s.ID,
		Score:       s.Score,
		MaxScore:    s.MaxScore,
		SubmittedAt: s.SubmittedAt,
	}
}

func (s *TestSubmission) SectionResults() (map[string]assessment.SectionResult, error) {
	out := map[string]assessment.SectionResult{}
	if len(s.Results) == 0 {
		return out, nil
	}
	err := json.Unmarshal(s.Results, &out)
	return out, err
}

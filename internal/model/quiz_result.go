package model

import (
	"coder_assessment_backend/internal/assessment"
	"time"
)

// QuizResult 存储单题测验的结果，中途退出也会保存已得分数
type QuizResult struct {
	UUIDBase
	QuizID     string    `gorm:"uniqueIndex;type:varchar(36)" json:"quizId"`
	LearnerID  string    `gorm:"index;size:64" json:"learnerId"`
	CourseID   string    `gorm:"size:64;index" json:"courseId"`
	Score      int       `gorm:"not null" json:"score"`
	Total      int       `gorm:"not null" json:"total"`
	Answered   int       `gorm:"default:0" json:"answered"`
	Status     string    `gorm:"size:20;default:'completed'" json:"status"` // completed, exited
	FinishedAt time.Time `json:"finishedAt"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}

func NewQuizResult(o assessment.QuizOutcome) *QuizResult {
	return &QuizResult{
		QuizID:     o.QuizID,
		LearnerID:  o.LearnerID,
		CourseID:   o.CourseID,
		Score:      o.Score,
		Total:      o.Total,
		Answered:   o.Answered,
		Status:     string(o.Status),
		FinishedAt: o.FinishedAt,
	}
}

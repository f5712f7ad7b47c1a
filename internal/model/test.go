package model

import (
	"coder_assessment_backend/internal/assessment"
	"encoding/json"
	"strconv"

	"gorm.io/datatypes"
)

// swagger:model Test
type Test struct {
	UUIDBase
	Title      string        `gorm:"size:255;not null" json:"title"`
	TimeLimit  int           `gorm:"default:0" json:"timeLimit"` // Minutes
	TotalMarks int           `gorm:"default:0" json:"totalMarks"`
	CourseID   string        `gorm:"size:64;index" json:"courseId"`
	CreatorID  uint          `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Sections   []TestSection `gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE" json:"sections"`
}

func (Test) TableName() string {
	return "tests"
}

// TestSection Position 决定作答顺序；QuestionIDs 为有序的题目 ID 数组
type TestSection struct {
	UUIDBase
	TestID      string         `gorm:"index;type:varchar(36)" json:"testId"`
	Position    int            `gorm:"not null;default:0" json:"position"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Type        string         `gorm:"size:20;not null" json:"type"` // mcq, coding
	Genre       string         `gorm:"size:64" json:"genre"`
	QuestionIDs datatypes.JSON `gorm:"type:json" json:"questions"`
}

func (TestSection) TableName() string {
	return "test_sections"
}

func (t *Test) ToDomain() (assessment.Test, error) {
	out := assessment.Test{
		ID:         t.ID,
		Title:      t.Title,
		TimeLimit:  t.TimeLimit,
		TotalMarks: t.TotalMarks,
		CourseID:   t.CourseID,
		Sections:   make([]assessment.Section, 0, len(t.Sections)),
	}
	for _, s := range t.Sections {
		var ids []string
		if len(s.QuestionIDs) > 0 {
			if err := json.Unmarshal(s.QuestionIDs, &ids); err != nil {
				return assessment.Test{}, err
			}
		}
		out.Sections = append(out.Sections, assessment.Section{
			ID:        s.ID,
			Title:     s.Title,
			Type:      assessment.SectionType(s.Type),
			Genre:     s.Genre,
			Questions: assessment.QuestionRefs(ids),
		})
	}
	return out, nil
}

// NewTestFromDomain 按切片顺序写入 Position
func NewTestFromDomain(t assessment.Test, creatorID uint) (*Test, error) {
	m := &Test{
		Title:      t.Title,
		TimeLimit:  t.TimeLimit,
		TotalMarks: t.TotalMarks,
		CourseID:   t.CourseID,
		CreatorID:  creatorID,
	}
	m.ID = t.ID
	for i, s := range t.Sections {
		ids := []string(s.Questions)
		if ids == nil {
			ids = []string{}
		}
		b, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		sec := TestSection{
			Position:    i,
			Title:       s.Title,
			Type:        string(s.Type),
			Genre:       s.Genre,
			QuestionIDs: datatypes.JSON(b),
		}
		sec.ID = s.ID
		m.Sections = append(m.Sections, sec)
	}
	return m, nil
}

// LearnerKey JWT 中的用户 ID 转为运行时使用的学员标识
func LearnerKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

package model

import (
	"coder_assessment_backend/internal/assessment"
	"encoding/json"

	"gorm.io/datatypes"
)

// MCQQuestion 选择题题库。Answer 原样保存：数字下标、字母或选项原文
// swagger:model MCQQuestion
type MCQQuestion struct {
	UUIDBase
	Prompt    string         `gorm:"type:text;not null" json:"prompt"`
	Options   datatypes.JSON `gorm:"type:json" json:"options"`
	Answer    datatypes.JSON `gorm:"type:json" json:"answer"`
	Genre     string         `gorm:"size:64;index" json:"genre"`
	CreatorID uint           `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (MCQQuestion) TableName() string {
	return "mcq_questions"
}

// CodingQuestion 编程题题库
// swagger:model CodingQuestion
type CodingQuestion struct {
	UUIDBase
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Constraints  string         `gorm:"type:text" json:"constraints"`
	StarterCode  string         `gorm:"type:text" json:"starterCode"`
	FunctionName string         `gorm:"size:100" json:"functionName"`
	TestCases    datatypes.JSON `gorm:"type:json" json:"testCases"`
	Difficulty   string         `gorm:"size:20" json:"difficulty"`
	Genre        string         `gorm:"size:64;index" json:"genre"`
	CreatorID    uint           `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (CodingQuestion) TableName() string {
	return "coding_questions"
}

func (q *MCQQuestion) ToDomain() (assessment.MCQQuestion, error) {
	out := assessment.MCQQuestion{ID: q.ID, Prompt: q.Prompt, Genre: q.Genre}
	if len(q.Options) > 0 {
		if err := json.Unmarshal(q.Options, &out.Options); err != nil {
			return out, err
		}
	}
	if len(q.Answer) > 0 {
		if err := json.Unmarshal(q.Answer, &out.Answer); err != nil {
			return out, err
		}
	}
	return out, nil
}

func NewMCQQuestion(q assessment.MCQQuestion, creatorID uint) (*MCQQuestion, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return nil, err
	}
	answer, err := json.Marshal(q.Answer)
	if err != nil {
		return nil, err
	}
	m := &MCQQuestion{
		Prompt:    q.Prompt,
		Options:   datatypes.JSON(options),
		Answer:    datatypes.JSON(answer),
		Genre:     q.Genre,
		CreatorID: creatorID,
	}
	m.ID = q.ID
	return m, nil
}

func (q *CodingQuestion) ToDomain() (assessment.CodingQuestion, error) {
	out := assessment.CodingQuestion{
		ID:           q.ID,
		Title:        q.Title,
		Description:  q.Description,
		Constraints:  q.Constraints,
		StarterCode:  q.StarterCode,
		FunctionName: q.FunctionName,
		Difficulty:   q.Difficulty,
		Genre:        q.Genre,
	}
	if len(q.TestCases) > 0 {
		if err := json.Unmarshal(q.TestCases, &out.TestCases); err != nil {
			return out, err
		}
	}
	return out, nil
}

func NewCodingQuestion(q assessment.CodingQuestion, creatorID uint) (*CodingQuestion, error) {
	cases := q.TestCases
	if cases == nil {
		cases = []assessment.TestCase{}
	}
	b, err := json.Marshal(cases)
	if err != nil {
		return nil, err
	}
	m := &CodingQuestion{
		Title:        q.Title,
		Description:  q.Description,
		Constraints:  q.Constraints,
		StarterCode:  q.StarterCode,
		FunctionName: q.FunctionName,
		TestCases:    datatypes.JSON(b),
		Difficulty:   q.Difficulty,
		Genre:        q.Genre,
		CreatorID:    creatorID,
	}
	m.ID = q.ID
	return m, nil
}

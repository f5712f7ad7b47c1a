package assessment

import (
	"encoding/json"
	"fmt"
)

// SectionResult 单个分区的成绩，按分区题型区分字段。
// 选择题：Score/Total/Answers；编程题：PassedCount/Total，LastRun 仅用于展示不落库。
type SectionResult struct {
	SectionID   string
	Type        SectionType
	Score       int
	PassedCount int
	Total       int
	Answers     map[string]*int
	LastRun     []CaseResult
	// Forced 表示该分区由整卷提交强制结算，而不是学员主动完成
	Forced bool
}

func (r SectionResult) Numerator() int {
	if r.Type == SectionCoding {
		return r.PassedCount
	}
	return r.Score
}

func (r SectionResult) Denominator() int { return r.Total }

type mcqResultJSON struct {
	SectionID string          `json:"sectionId"`
	Type      SectionType     `json:"type"`
	Score     int             `json:"score"`
	Total     int             `json:"total"`
	Answers   map[string]*int `json:"answers"`
	Forced    bool            `json:"forced,omitempty"`
}

type codingResultJSON struct {
	SectionID   string      `json:"sectionId"`
	Type        SectionType `json:"type"`
	PassedCount int         `json:"passedCount"`
	Total       int         `json:"total"`
	Forced      bool        `json:"forced,omitempty"`
}

func (r SectionResult) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case SectionCoding:
		return json.Marshal(codingResultJSON{
			SectionID:   r.SectionID,
			Type:        r.Type,
			PassedCount: r.PassedCount,
			Total:       r.Total,
			Forced:      r.Forced,
		})
	case SectionMCQ:
		answers := r.Answers
		if answers == nil {
			answers = map[string]*int{}
		}
		return json.Marshal(mcqResultJSON{
			SectionID: r.SectionID,
			Type:      r.Type,
			Score:     r.Score,
			Total:     r.Total,
			Answers:   answers,
			Forced:    r.Forced,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSectionType, r.Type)
	}
}

func (r *SectionResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type SectionType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Type {
	case SectionCoding:
		var c codingResultJSON
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*r = SectionResult{SectionID: c.SectionID, Type: c.Type, PassedCount: c.PassedCount, Total: c.Total, Forced: c.Forced}
	case SectionMCQ:
		var m mcqResultJSON
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*r = SectionResult{SectionID: m.SectionID, Type: m.Type, Score: m.Score, Total: m.Total, Answers: m.Answers, Forced: m.Forced}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSectionType, probe.Type)
	}
	return nil
}

// Aggregate 汇总：总分 = 各分区分子之和，满分 = 各分区分母之和，不做加权
func Aggregate(results []SectionResult) (score, max int) {
	for _, r := range results {
		score += r.Numerator()
		max += r.Denominator()
	}
	return score, max
}

// AggregateMap 同 Aggregate，入参为按分区 ID 索引的结果
func AggregateMap(results map[string]SectionResult) (score, max int) {
	for _, r := range results {
		score += r.Numerator()
		max += r.Denominator()
	}
	return score, max
}

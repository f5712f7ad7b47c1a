package assessment

import (
	"context"
	"errors"
	"sync"
	"time"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeJudge struct {
	mu      sync.Mutex
	results [][]CaseResult
	err     error
	calls   []RunRequest
	// block 非空时 Run 会等待它关闭，entered 在进入等待前收到通知
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeJudge) Run(ctx context.Context, req RunRequest) ([]CaseResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []SubmissionPayload
	err      error
	// 与 fakeJudge 相同的阻塞方式
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSubmitter) SubmitAttempt(_ context.Context, p SubmissionPayload) (SubmissionReceipt, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return SubmissionReceipt{}, f.err
	}
	f.payloads = append(f.payloads, p)
	return SubmissionReceipt{ID: "sub-1", Score: p.Score, MaxScore: p.MaxScore, SubmittedAt: p.SubmittedAt}, nil
}

func (f *fakeSubmitter) last() (SubmissionPayload, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return SubmissionPayload{}, 0
	}
	return f.payloads[len(f.payloads)-1], len(f.payloads)
}

func pass(n, of int) []CaseResult {
	out := make([]CaseResult, of)
	for i := 0; i < n; i++ {
		out[i].Pass = true
	}
	return out
}

func mcqBank() map[string]MCQQuestion {
	return map[string]MCQQuestion{
		"m1": {ID: "m1", Prompt: "2+2?", Options: []string{"3", "4", "5"}, Answer: IndexKey(1), Genre: "math"},
		"m2": {ID: "m2", Prompt: "capital of France?", Options: []string{"Rome", "Paris", "Berlin", "Madrid"}, Answer: TextKey("B"), Genre: "geo"},
		"m3": {ID: "m3", Prompt: "largest planet?", Options: []string{"Mars", "Earth", "Jupiter"}, Answer: TextKey("jupiter"), Genre: "science"},
	}
}

func codingBank() map[string]CodingQuestion {
	return map[string]CodingQuestion{
		"c1": {ID: "c1", Title: "sum", FunctionName: "sum", StarterCode: "def sum(a, b):\n    pass",
			TestCases: []TestCase{{Input: "1 2", ExpectedOutput: "3"}}},
		"c2": {ID: "c2", Title: "reverse", FunctionName: "reverse", StarterCode: "def reverse(s):\n    pass",
			TestCases: []TestCase{{Input: "ab", ExpectedOutput: "ba"}, {Input: "abc", ExpectedOutput: "cba"}}},
	}
}

func twoSectionTest(limit int) Test {
	return Test{
		ID:        "t1",
		Title:     "midterm",
		TimeLimit: limit,
		Sections: []Section{
			{ID: "s-mcq", Title: "Choices", Type: SectionMCQ, Questions: QuestionRefs{"m1", "m2"}},
			{ID: "s-code", Title: "Coding", Type: SectionCoding, Questions: QuestionRefs{"c1"}},
		},
	}
}

func newTestSession(t Test, judge Judge, sub Submitter, clock Clock) (*Session, error) {
	return NewSession(SessionConfig{
		AttemptID: "a1",
		LearnerID: "42",
		Test:      t,
		MCQ:       mcqBank(),
		Coding:    codingBank(),
		Judge:     judge,
		Submitter: sub,
		Clock:     clock,
	})
}

package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/util"
	"context"
	"errors"
	"testing"
	"time"
)

func mainDelivery(t *testing.T, f *testFixture) *Delivery {
	t.Helper()
	d, err := f.testSvc.LoadForDelivery(context.Background(), "t-main")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRescore(t *testing.T) {
	f := newTestFixture(t)
	d := mainDelivery(t, f)

	tests := []struct {
		name      string
		results   map[string]assessment.SectionResult
		wantScore int
		wantMax   int
		check     func(t *testing.T, out map[string]assessment.SectionResult)
	}{
		{
			name: "inflated mcq score is recomputed from answers",
			results: map[string]assessment.SectionResult{
				"s-mcq": {SectionID: "s-mcq", Type: assessment.SectionMCQ, Score: 2, Total: 2,
					Answers: map[string]*int{"q1": intp(1), "q2": intp(0)}},
				"s-code": {SectionID: "s-code", Type: assessment.SectionCoding, PassedCount: 2, Total: 2},
			},
			wantScore: 3,
			wantMax:   4,
		},
		{
			name: "coding passed count is clamped",
			results: map[string]assessment.SectionResult{
				"s-mcq":  {SectionID: "s-mcq", Type: assessment.SectionMCQ, Answers: map[string]*int{}},
				"s-code": {SectionID: "s-code", Type: assessment.SectionCoding, PassedCount: 9, Total: 9},
			},
			wantScore: 2,
			wantMax:   4,
		},
		{
			name: "missing section is zeroed and unknown section dropped",
			results: map[string]assessment.SectionResult{
				"s-mcq":  {SectionID: "s-mcq", Type: assessment.SectionMCQ, Answers: map[string]*int{"q1": intp(1), "q2": intp(1)}},
				"s-evil": {SectionID: "s-evil", Type: assessment.SectionCoding, PassedCount: 100, Total: 100},
			},
			wantScore: 2,
			wantMax:   4,
			check: func(t *testing.T, out map[string]assessment.SectionResult) {
				if _, ok := out["s-evil"]; ok {
					t.Errorf("unknown section kept")
				}
				code, ok := out["s-code"]
				if !ok || !code.Forced || code.PassedCount != 0 || code.Total != 2 {
					t.Errorf("s-code = %+v, want forced 0/2", code)
				}
			},
		},
		{
			name: "section with mismatched type is treated as missing",
			results: map[string]assessment.SectionResult{
				"s-mcq": {SectionID: "s-mcq", Type: assessment.SectionCoding, PassedCount: 2, Total: 2},
			},
			wantScore: 0,
			wantMax:   4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Rescore(assessment.SubmissionPayload{Results: tt.results, Score: 99, MaxScore: 99}, d)
			if p.Score != tt.wantScore || p.MaxScore != tt.wantMax {
				t.Errorf("score = %d/%d, want %d/%d", p.Score, p.MaxScore, tt.wantScore, tt.wantMax)
			}
			if len(p.Results) != len(d.Test.Sections) {
				t.Errorf("got %d results, want one per section", len(p.Results))
			}
			if tt.check != nil {
				tt.check(t, p.Results)
			}
		})
	}
}

func TestSubmitAttemptPersistsServerScore(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	p := assessment.SubmissionPayload{
		AttemptID: "a1",
		TestID:    "t-main",
		LearnerID: "42",
		Results: map[string]assessment.SectionResult{
			"s-mcq": {SectionID: "s-mcq", Type: assessment.SectionMCQ, Answers: map[string]*int{"q1": intp(1), "q2": intp(1)}},
		},
		SubmittedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Trigger:     assessment.TriggerTimeout,
		Score:       4,
		MaxScore:    4,
	}
	receipt, err := f.submitSvc.SubmitAttempt(ctx, p)
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if receipt.Score != 2 || receipt.MaxScore != 4 {
		t.Errorf("receipt = %+v, want 2/4", receipt)
	}
	row := f.submissions.rows["a1"]
	if row == nil || row.Trigger != "timeout" || row.LearnerID != "42" {
		t.Fatalf("unexpected row %+v", row)
	}
	results, err := row.SectionResults()
	if err != nil {
		t.Fatal(err)
	}
	if !results["s-code"].Forced {
		t.Errorf("unvisited coding section should be stored as forced zero")
	}
	if len(f.archive.payloads) != 1 || f.submissions.archived[row.ID] == "" {
		t.Errorf("submission not archived")
	}
	if len(f.locks.held) != 0 {
		t.Errorf("submit lock not released")
	}

	again, err := f.submitSvc.SubmitAttempt(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != receipt.ID || len(f.archive.payloads) != 1 {
		t.Errorf("second submission should return the existing receipt")
	}
}

func TestSubmitAttemptRejectsConcurrentSubmit(t *testing.T) {
	f := newTestFixture(t)
	f.locks.held["a1"] = true
	_, err := f.submitSvc.SubmitAttempt(context.Background(), assessment.SubmissionPayload{AttemptID: "a1", TestID: "t-main"})
	if !errors.Is(err, assessment.ErrSubmitInFlight) {
		t.Fatalf("got %v, want ErrSubmitInFlight", err)
	}
	if len(f.submissions.rows) != 0 {
		t.Errorf("submission persisted while lock held")
	}
}

func TestSubmitAttemptPersistenceFailure(t *testing.T) {
	f := newTestFixture(t)
	f.submissions.failNext = errBoom
	p := assessment.SubmissionPayload{AttemptID: "a1", TestID: "t-main", Trigger: assessment.TriggerManual}
	if _, err := f.submitSvc.SubmitAttempt(context.Background(), p); !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want errBoom", err)
	}
	if len(f.locks.held) != 0 {
		t.Errorf("lock must be released after failure so the learner can retry")
	}
	if _, err := f.submitSvc.SubmitAttempt(context.Background(), p); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestSubmitAttemptArchiveFailureIsNotFatal(t *testing.T) {
	f := newTestFixture(t)
	f.archive.err = errBoom
	_, err := f.submitSvc.SubmitAttempt(context.Background(), assessment.SubmissionPayload{AttemptID: "a1", TestID: "t-main"})
	if err != nil {
		t.Fatalf("archive failure should not fail the submission: %v", err)
	}
	if f.submissions.rows["a1"] == nil {
		t.Errorf("submission not persisted")
	}
}

func TestSubmitDirect(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.submitSvc.SubmitDirect(ctx, "42", "t-main", DirectSubmitRequest{Trigger: "whenever"})
	if !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("got %v, want ErrInvalidTrigger", err)
	}

	receipt, err := f.submitSvc.SubmitDirect(ctx, "42", "t-main", DirectSubmitRequest{
		Results: map[string]assessment.SectionResult{
			"s-mcq":  {SectionID: "s-mcq", Type: assessment.SectionMCQ, Answers: map[string]*int{"q1": intp(1)}},
			"s-code": {SectionID: "s-code", Type: assessment.SectionCoding, PassedCount: 99, Total: 2},
		},
		RemainingSeconds: intp(-5),
	})
	if err != nil {
		t.Fatal(err)
	}
	// 编程题没有判题记录，自报的通过数不计分
	if receipt.Score != 1 || receipt.MaxScore != 4 {
		t.Errorf("receipt = %+v, want 1/4", receipt)
	}
	rows, total, _ := f.submitSvc.ListByLearner(ctx, "42", 1, 10)
	if total != 1 || rows[0].Trigger != "manual" || *rows[0].RemainingSeconds != 0 {
		t.Errorf("unexpected stored row %+v", rows)
	}
	results, err := rows[0].SectionResults()
	if err != nil {
		t.Fatal(err)
	}
	if code := results["s-code"]; code.PassedCount != 0 || !code.Forced {
		t.Errorf("s-code = %+v, want forced 0", code)
	}

	again, err := f.submitSvc.SubmitDirect(ctx, "42", "t-main", DirectSubmitRequest{Results: map[string]assessment.SectionResult{}})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID == receipt.ID {
		t.Errorf("each direct submission gets its own attempt")
	}
}

func TestSubmitAttemptReceiptBelongsToLearner(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	p := assessment.SubmissionPayload{AttemptID: "a1", TestID: "t-main", LearnerID: "42", Trigger: assessment.TriggerManual}
	if _, err := f.submitSvc.SubmitAttempt(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.LearnerID = "43"
	if _, err := f.submitSvc.SubmitAttempt(ctx, p); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
}

func TestSaveQuizResult(t *testing.T) {
	f := newTestFixture(t)
	err := f.submitSvc.SaveQuizResult(context.Background(), assessment.QuizOutcome{
		QuizID: "z1", LearnerID: "42", Score: 3, Total: 5, Answered: 4, Status: assessment.QuizExited,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := f.submitSvc.ListQuizResults(context.Background(), "42", 10)
	if len(got) != 1 || got[0].Status != "exited" || got[0].Score != 3 {
		t.Errorf("unexpected quiz results %+v", got)
	}
}

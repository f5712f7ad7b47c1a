package assessment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTimeoutSubmitsZeroedUnvisitedSection(t *testing.T) {
	clock := NewManualClock(epoch)
	sub := &fakeSubmitter{}
	s, err := newTestSession(twoSectionTest(1), &fakeJudge{}, sub, clock)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	if _, err := s.Answer("s-mcq", "m1", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Answer("s-mcq", "m2", 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)

	p, n := sub.last()
	if n != 1 {
		t.Fatalf("expected one submission, got %d", n)
	}
	if p.Trigger != TriggerTimeout {
		t.Fatalf("trigger = %s", p.Trigger)
	}
	if p.RemainingSeconds == nil || *p.RemainingSeconds != 0 {
		t.Fatalf("remaining = %v", p.RemainingSeconds)
	}
	mcq := p.Results["s-mcq"]
	if mcq.Score != 2 || mcq.Total != 2 {
		t.Fatalf("mcq result = %+v", mcq)
	}
	code, ok := p.Results["s-code"]
	if !ok {
		t.Fatal("unvisited coding section missing from payload")
	}
	if code.PassedCount != 0 || code.Total != 1 || !code.Forced {
		t.Fatalf("coding result = %+v", code)
	}
	if p.Score != 2 || p.MaxScore != 3 {
		t.Fatalf("aggregate = %d/%d", p.Score, p.MaxScore)
	}
	if st := s.State(); st != StateSubmitted {
		t.Fatalf("state = %s", st)
	}
}

func TestTimeoutPayloadIsSubsetOfCompletedRun(t *testing.T) {
	full := func() SubmissionPayload {
		clock := NewManualClock(epoch)
		sub := &fakeSubmitter{}
		judge := &fakeJudge{results: [][]CaseResult{pass(1, 1)}}
		s, _ := newTestSession(twoSectionTest(5), judge, sub, clock)
		s.Start()
		s.Answer("s-mcq", "m1", 1)
		s.Answer("s-mcq", "m2", 1)
		if _, err := s.FinishSection("s-mcq"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.SubmitCode(context.Background(), "s-code", "c1", "code", "python"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Submit(context.Background()); err != nil {
			t.Fatal(err)
		}
		p, _ := sub.last()
		return p
	}()

	clock := NewManualClock(epoch)
	sub := &fakeSubmitter{}
	s, _ := newTestSession(twoSectionTest(5), &fakeJudge{}, sub, clock)
	s.Start()
	s.Answer("s-mcq", "m1", 1)
	clock.Advance(5 * time.Minute)
	partial, n := sub.last()
	if n != 1 {
		t.Fatalf("submissions = %d", n)
	}

	if len(partial.Results) != len(full.Results) {
		t.Fatalf("section count differs: %d vs %d", len(partial.Results), len(full.Results))
	}
	for id, r := range partial.Results {
		f := full.Results[id]
		if r.Numerator() > f.Numerator() || r.Denominator() != f.Denominator() {
			t.Fatalf("section %s: partial %d/%d exceeds full %d/%d", id, r.Numerator(), r.Denominator(), f.Numerator(), f.Denominator())
		}
	}
}

func TestMCQAnswerLocksQuestion(t *testing.T) {
	s, _ := newTestSession(twoSectionTest(0), &fakeJudge{}, &fakeSubmitter{}, NewManualClock(epoch))
	s.Start()

	out, err := s.Answer("s-mcq", "m1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Correct == nil || *out.Correct {
		t.Fatalf("option 0 should be incorrect: %+v", out)
	}
	if _, err := s.Answer("s-mcq", "m1", 1); !errors.Is(err, ErrQuestionLocked) {
		t.Fatalf("expected ErrQuestionLocked, got %v", err)
	}
	if _, err := s.Answer("s-mcq", "m2", 9); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if _, err := s.Answer("s-code", "c1", 0); !errors.Is(err, ErrWrongSectionType) {
		t.Fatalf("expected ErrWrongSectionType, got %v", err)
	}

	r, err := s.FinishSection("s-mcq")
	if err != nil {
		t.Fatal(err)
	}
	if r.Score != 0 || r.Total != 2 || r.Answers["m2"] != nil {
		t.Fatalf("result = %+v", r)
	}
	if _, err := s.Answer("s-mcq", "m2", 1); !errors.Is(err, ErrSectionFinished) {
		t.Fatalf("expected ErrSectionFinished, got %v", err)
	}
	if _, err := s.FinishSection("s-mcq"); !errors.Is(err, ErrSectionFinished) {
		t.Fatalf("finish twice: %v", err)
	}
}

func TestMCQExactlyOneOutcome(t *testing.T) {
	bank := mcqBank()
	for id, q := range bank {
		for opt := range q.Options {
			sec := Section{ID: "s", Title: "s", Type: SectionMCQ, Questions: QuestionRefs{id}}
			st, err := NewMCQStrategy(sec, []MCQQuestion{q})
			if err != nil {
				t.Fatal(err)
			}
			out, err := st.RecordAnswer(Answer{QuestionID: id, Option: &opt})
			if err != nil {
				t.Fatal(err)
			}
			r := st.Finalize()
			correct := *out.Correct
			if correct != (r.Score == 1) || r.Score+boolInt(!correct) != 1 {
				t.Fatalf("%s option %d: correct=%v score=%d", id, opt, correct, r.Score)
			}
			if _, err := st.RecordAnswer(Answer{QuestionID: id, Option: &opt}); !errors.Is(err, ErrQuestionLocked) {
				t.Fatalf("second answer accepted: %v", err)
			}
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestCodingRunDoesNotPersist(t *testing.T) {
	tst := Test{ID: "t2", Title: "code", Sections: []Section{
		{ID: "s-code", Title: "Coding", Type: SectionCoding, Questions: QuestionRefs{"c2"}},
	}}
	judge := &fakeJudge{results: [][]CaseResult{pass(1, 2), pass(2, 2), pass(2, 2)}}
	sub := &fakeSubmitter{}
	s, err := newTestSession(tst, judge, sub, NewManualClock(epoch))
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	ctx := context.Background()

	if cases, err := s.RunCode(ctx, "s-code", "c2", "first", "python"); err != nil || cases[1].Pass {
		t.Fatalf("first run: %v %v", cases, err)
	}
	if snap := s.Snapshot(); len(snap.Results) != 0 {
		t.Fatalf("run persisted a result: %+v", snap.Results)
	}
	if _, err := s.RunCode(ctx, "s-code", "c2", "second", "python"); err != nil {
		t.Fatal(err)
	}
	out, err := s.SubmitCode(ctx, "s-code", "c2", "second", "python")
	if err != nil {
		t.Fatal(err)
	}
	if out.Passed != 2 || !out.SectionComplete {
		t.Fatalf("submit outcome = %+v", out)
	}
	if st := s.State(); st != StateAllComplete {
		t.Fatalf("state = %s", st)
	}
	if _, err := s.SubmitCode(ctx, "s-code", "c2", "third", "python"); !errors.Is(err, ErrSectionFinished) {
		t.Fatalf("resubmit: %v", err)
	}

	if _, err := s.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	p, _ := sub.last()
	r := p.Results["s-code"]
	if r.PassedCount != 2 || r.Total != 2 || r.Forced {
		t.Fatalf("persisted = %+v", r)
	}
	if judge.calls[2].Code != "second" {
		t.Fatalf("submitted buffer = %q", judge.calls[2].Code)
	}
}

func TestCodingSectionRequiresSubmit(t *testing.T) {
	s, _ := newTestSession(twoSectionTest(0), &fakeJudge{}, &fakeSubmitter{}, NewManualClock(epoch))
	s.Start()
	if _, err := s.FinishSection("s-code"); !errors.Is(err, ErrSubmitRequired) {
		t.Fatalf("expected ErrSubmitRequired, got %v", err)
	}
}

func TestJudgeFailureLeavesResultsUntouched(t *testing.T) {
	judge := &fakeJudge{err: errors.New("connection refused")}
	s, _ := newTestSession(twoSectionTest(0), judge, &fakeSubmitter{}, NewManualClock(epoch))
	s.Start()
	_, err := s.SubmitCode(context.Background(), "s-code", "c1", "x", "python")
	if !errors.Is(err, ErrJudgeUnavailable) {
		t.Fatalf("expected ErrJudgeUnavailable, got %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Results) != 0 {
		t.Fatalf("results = %+v", snap.Results)
	}
	if snap.Sections[1].Questions[0].Submitted {
		t.Fatal("question marked submitted after judge failure")
	}
}

func TestConcurrentSubmitCodeRejected(t *testing.T) {
	judge := &fakeJudge{
		results: [][]CaseResult{pass(1, 1)},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s, _ := newTestSession(twoSectionTest(0), judge, &fakeSubmitter{}, NewManualClock(epoch))
	s.Start()

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitCode(context.Background(), "s-code", "c1", "x", "python")
		done <- err
	}()
	<-judge.entered

	_, err := s.SubmitCode(context.Background(), "s-code", "c1", "y", "python")
	close(judge.block)
	if !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestFailedSubmitRevertsState(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("db down")}
	s, _ := newTestSession(twoSectionTest(0), &fakeJudge{}, sub, NewManualClock(epoch))
	s.Start()
	s.Answer("s-mcq", "m1", 1)

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	snap := s.Snapshot()
	if snap.State != StatePresenting || snap.LastError == "" {
		t.Fatalf("state=%s lastError=%q", snap.State, snap.LastError)
	}
	// 失败后仍可继续作答
	if _, err := s.Answer("s-mcq", "m2", 1); err != nil {
		t.Fatal(err)
	}

	sub.err = nil
	rec, err := s.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Score != 2 || rec.MaxScore != 3 {
		t.Fatalf("receipt = %+v", rec)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("second submit: %v", err)
	}
}

func TestCloseStopsTimer(t *testing.T) {
	clock := NewManualClock(epoch)
	sub := &fakeSubmitter{}
	closed := ""
	s, _ := NewSession(SessionConfig{
		AttemptID:  "a9",
		Test:       twoSectionTest(1),
		MCQ:        mcqBank(),
		Coding:     codingBank(),
		Judge:      &fakeJudge{},
		Submitter:  sub,
		Clock:      clock,
		OnFinished: func(id string) { closed = id },
	})
	s.Start()
	s.Close()
	clock.Advance(2 * time.Minute)
	if _, n := sub.last(); n != 0 {
		t.Fatalf("closed session submitted %d times", n)
	}
	if closed != "a9" {
		t.Fatalf("OnFinished got %q", closed)
	}
	if _, err := s.Answer("s-mcq", "m1", 1); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("answer after close: %v", err)
	}
}

func TestMissingQuestionIsFatal(t *testing.T) {
	tst := twoSectionTest(0)
	tst.Sections[0].Questions = append(tst.Sections[0].Questions, "ghost")
	if _, err := newTestSession(tst, &fakeJudge{}, &fakeSubmitter{}, nil); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestSelectSectionBounds(t *testing.T) {
	s, _ := newTestSession(twoSectionTest(0), &fakeJudge{}, &fakeSubmitter{}, NewManualClock(epoch))
	s.Start()
	if err := s.SelectSection(1); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectSection(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if got := s.Snapshot().CurrentSection; got != 1 {
		t.Fatalf("current section = %d", got)
	}
}

func TestExpiredAttemptOnlyAcceptsSubmit(t *testing.T) {
	clock := NewManualClock(epoch)
	sub := &fakeSubmitter{err: errors.New("db down")}
	judge := &fakeJudge{results: [][]CaseResult{pass(1, 1), pass(1, 1)}}
	s, _ := newTestSession(twoSectionTest(1), judge, sub, clock)
	s.Start()
	ctx := context.Background()

	clock.Advance(2 * time.Minute)
	snap := s.Snapshot()
	if !snap.TimedOut || snap.State != StatePresenting || *snap.RemainingSeconds != 0 || snap.LastError == "" {
		t.Fatalf("after failed auto submit: %+v", snap)
	}

	if _, err := s.Answer("s-mcq", "m1", 1); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("answer after deadline: %v", err)
	}
	if _, err := s.FinishSection("s-mcq"); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("finish after deadline: %v", err)
	}
	if _, err := s.RunCode(ctx, "s-code", "c1", "x", "python"); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("run after deadline: %v", err)
	}
	if _, err := s.SubmitCode(ctx, "s-code", "c1", "x", "python"); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("submit code after deadline: %v", err)
	}
	if len(judge.calls) != 0 {
		t.Fatalf("judge called %d times after deadline", len(judge.calls))
	}

	sub.err = nil
	if _, err := s.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	p, n := sub.last()
	if n != 1 || p.Trigger != TriggerTimeout || *p.RemainingSeconds != 0 {
		t.Fatalf("retry payload: n=%d trigger=%s remaining=%v", n, p.Trigger, p.RemainingSeconds)
	}
	if p.Score != 0 {
		t.Fatalf("score = %d", p.Score)
	}
}

func TestTimerIgnoredWhileSubmitInFlight(t *testing.T) {
	clock := NewManualClock(epoch)
	sub := &fakeSubmitter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, _ := newTestSession(twoSectionTest(1), &fakeJudge{}, sub, clock)
	s.Start()
	s.Answer("s-mcq", "m1", 1)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-sub.entered

	clock.Advance(2 * time.Minute)
	close(sub.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	p, n := sub.last()
	if n != 1 {
		t.Fatalf("expected exactly one submission, got %d", n)
	}
	if p.Trigger != TriggerManual {
		t.Fatalf("trigger = %s", p.Trigger)
	}
	if st := s.State(); st != StateSubmitted {
		t.Fatalf("state = %s", st)
	}
}

func TestJudgeErrorNotWrappedTwice(t *testing.T) {
	wrapped := fmt.Errorf("%w: status 500", ErrJudgeUnavailable)
	judge := &fakeJudge{err: wrapped}
	s, _ := newTestSession(twoSectionTest(0), judge, &fakeSubmitter{}, NewManualClock(epoch))
	s.Start()
	_, err := s.RunCode(context.Background(), "s-code", "c1", "x", "python")
	if err != wrapped {
		t.Fatalf("got %v, want the judge error unchanged", err)
	}
}

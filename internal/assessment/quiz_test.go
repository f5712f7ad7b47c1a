package assessment

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRecorder struct {
	saved []QuizOutcome
	err   error
}

func (f *fakeRecorder) SaveQuizResult(_ context.Context, o QuizOutcome) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, o)
	return nil
}

func threeQuestionQuiz(clock Clock, rec QuizRecorder) (*QuizSession, error) {
	bank := mcqBank()
	return NewQuizSession(QuizConfig{
		QuizID:       "q1",
		LearnerID:    "42",
		Questions:    []MCQQuestion{bank["m1"], bank["m2"], bank["m3"]},
		QuestionTime: 20 * time.Second,
		Clock:        clock,
		Recorder:     rec,
	})
}

func TestQuizFinalScore(t *testing.T) {
	clock := NewManualClock(epoch)
	rec := &fakeRecorder{}
	q, err := threeQuestionQuiz(clock, rec)
	if err != nil {
		t.Fatal(err)
	}
	q.Start()
	ctx := context.Background()

	clock.Advance(20 * time.Second)
	if v := q.Snapshot(); v.Current != 1 || v.Score != 0 {
		t.Fatalf("after timeout: %+v", v)
	}
	if _, err := q.Answer(ctx, "m2", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Answer(ctx, "m3", 0); err != nil {
		t.Fatal(err)
	}

	if len(rec.saved) != 1 {
		t.Fatalf("saved %d results", len(rec.saved))
	}
	got := rec.saved[0]
	if got.Score != 1 || got.Total != 3 || got.Answered != 2 || got.Status != QuizCompleted {
		t.Fatalf("outcome = %+v", got)
	}

	// 已完成的测验退出不会重复写入
	if _, err := q.Exit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rec.saved) != 1 {
		t.Fatalf("saved %d results after exit", len(rec.saved))
	}
}

func TestQuizExitPersistsAccruedScore(t *testing.T) {
	clock := NewManualClock(epoch)
	rec := &fakeRecorder{}
	q, _ := threeQuestionQuiz(clock, rec)
	q.Start()
	ctx := context.Background()

	clock.Advance(20 * time.Second)
	if _, err := q.Answer(ctx, "m2", 1); err != nil {
		t.Fatal(err)
	}
	out, err := q.Exit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Score != 1 || out.Status != QuizExited {
		t.Fatalf("outcome = %+v", out)
	}
	if len(rec.saved) != 1 || rec.saved[0].Score != 1 {
		t.Fatalf("saved = %+v", rec.saved)
	}

	clock.Advance(time.Minute)
	if _, err := q.Answer(ctx, "m3", 2); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("answer after exit: %v", err)
	}
	if len(rec.saved) != 1 {
		t.Fatalf("timer fired after exit: %+v", rec.saved)
	}
}

func TestQuizCountdownResetsPerQuestion(t *testing.T) {
	clock := NewManualClock(epoch)
	q, _ := threeQuestionQuiz(clock, &fakeRecorder{})
	q.Start()

	clock.Advance(15 * time.Second)
	if _, err := q.Answer(context.Background(), "m1", 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(15 * time.Second)
	v := q.Snapshot()
	if v.Current != 1 || v.RemainingSeconds != 5 {
		t.Fatalf("snapshot = %+v", v)
	}
	if _, err := q.Answer(context.Background(), "m1", 1); !errors.Is(err, ErrQuestionLocked) {
		t.Fatalf("answering a past question: %v", err)
	}
	if _, err := q.Answer(context.Background(), "m3", 1); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("answering ahead: %v", err)
	}
}

func TestQuizExitRetriesAfterFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	q, _ := threeQuestionQuiz(NewManualClock(epoch), rec)
	q.Start()
	if _, err := q.Exit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	rec.err = nil
	out, err := q.Exit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != QuizExited || len(rec.saved) != 1 {
		t.Fatalf("outcome=%+v saved=%d", out, len(rec.saved))
	}
}

func TestEmptyQuizRejected(t *testing.T) {
	if _, err := NewQuizSession(QuizConfig{QuizID: "x"}); !errors.Is(err, ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", err)
	}
}

func TestQuizStaleTimerAfterAnswerIgnored(t *testing.T) {
	clock := NewManualClock(epoch)
	q, _ := threeQuestionQuiz(clock, &fakeRecorder{})
	q.Start()

	// 第一题的计时器已触发但尚未拿到会话锁，此时学员答完第一题
	q.countdown.mu.Lock()
	firstGen := q.countdown.gen
	q.countdown.mu.Unlock()
	if _, err := q.Answer(context.Background(), "m1", 1); err != nil {
		t.Fatal(err)
	}
	q.expire(firstGen)

	v := q.Snapshot()
	if v.Current != 1 || v.Answered != 1 || v.RemainingSeconds != 20 {
		t.Fatalf("snapshot = %+v", v)
	}
	if _, err := q.Answer(context.Background(), "m2", 1); err != nil {
		t.Fatalf("second question was skipped: %v", err)
	}
}

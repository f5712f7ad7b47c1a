package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/model"
	"coder_assessment_backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeQuestionStore struct {
	mcq    map[string]model.MCQQuestion
	coding map[string]model.CodingQuestion
	order  []string
	seq    int
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{mcq: map[string]model.MCQQuestion{}, coding: map[string]model.CodingQuestion{}}
}

func (f *fakeQuestionStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeQuestionStore) CreateMCQ(ctx context.Context, q *model.MCQQuestion) error {
	if q.ID == "" {
		q.ID = f.nextID("m")
	}
	f.mcq[q.ID] = *q
	f.order = append(f.order, q.ID)
	return nil
}

func (f *fakeQuestionStore) FindMCQByID(ctx context.Context, id string) (*model.MCQQuestion, error) {
	q, ok := f.mcq[id]
	if !ok {
		return nil, repository.ErrQuestionNotFound
	}
	return &q, nil
}

func (f *fakeQuestionStore) ListMCQ(ctx context.Context, genre string) ([]model.MCQQuestion, error) {
	var out []model.MCQQuestion
	for _, id := range f.order {
		q, ok := f.mcq[id]
		if !ok {
			continue
		}
		if genre == "" || strings.EqualFold(genre, q.Genre) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) FindMCQByIDs(ctx context.Context, ids []string) ([]model.MCQQuestion, error) {
	var out []model.MCQQuestion
	for _, id := range ids {
		if q, ok := f.mcq[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) RandomMCQ(ctx context.Context, genre string, n int) ([]model.MCQQuestion, error) {
	qs, _ := f.ListMCQ(ctx, genre)
	if len(qs) > n {
		qs = qs[:n]
	}
	return qs, nil
}

func (f *fakeQuestionStore) DeleteMCQ(ctx context.Context, id string) error {
	if _, ok := f.mcq[id]; !ok {
		return repository.ErrQuestionNotFound
	}
	delete(f.mcq, id)
	return nil
}

func (f *fakeQuestionStore) CreateCoding(ctx context.Context, q *model.CodingQuestion) error {
	if q.ID == "" {
		q.ID = f.nextID("c")
	}
	f.coding[q.ID] = *q
	f.order = append(f.order, q.ID)
	return nil
}

func (f *fakeQuestionStore) FindCodingByID(ctx context.Context, id string) (*model.CodingQuestion, error) {
	q, ok := f.coding[id]
	if !ok {
		return nil, repository.ErrQuestionNotFound
	}
	return &q, nil
}

func (f *fakeQuestionStore) ListCoding(ctx context.Context, genre string) ([]model.CodingQuestion, error) {
	var out []model.CodingQuestion
	for _, id := range f.order {
		q, ok := f.coding[id]
		if !ok {
			continue
		}
		if genre == "" || strings.EqualFold(genre, q.Genre) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) FindCodingByIDs(ctx context.Context, ids []string) ([]model.CodingQuestion, error) {
	var out []model.CodingQuestion
	for _, id := range ids {
		if q, ok := f.coding[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) DeleteCoding(ctx context.Context, id string) error {
	if _, ok := f.coding[id]; !ok {
		return repository.ErrQuestionNotFound
	}
	delete(f.coding, id)
	return nil
}

func (f *fakeQuestionStore) addMCQ(t *testing.T, q assessment.MCQQuestion) {
	t.Helper()
	m, err := model.NewMCQQuestion(q, 1)
	if err != nil {
		t.Fatalf("NewMCQQuestion: %v", err)
	}
	if err := f.CreateMCQ(context.Background(), m); err != nil {
		t.Fatal(err)
	}
}

func (f *fakeQuestionStore) addCoding(t *testing.T, q assessment.CodingQuestion) {
	t.Helper()
	m, err := model.NewCodingQuestion(q, 1)
	if err != nil {
		t.Fatalf("NewCodingQuestion: %v", err)
	}
	if err := f.CreateCoding(context.Background(), m); err != nil {
		t.Fatal(err)
	}
}

// seededBank 两道选择题（q1 答案下标 1，q2 答案 "Paris"）和一道两个用例的编程题 c1
func seededBank(t *testing.T) *fakeQuestionStore {
	f := newFakeQuestionStore()
	f.addMCQ(t, assessment.MCQQuestion{ID: "q1", Prompt: "1+1?", Options: []string{"1", "2", "3"}, Answer: assessment.IndexKey(1), Genre: "math"})
	f.addMCQ(t, assessment.MCQQuestion{ID: "q2", Prompt: "Capital of France?", Options: []string{"Rome", "Paris"}, Answer: assessment.TextKey("Paris"), Genre: "Geo"})
	f.addCoding(t, assessment.CodingQuestion{
		ID:           "c1",
		Title:        "sum",
		FunctionName: "sum",
		TestCases:    []assessment.TestCase{{Input: "1 2", ExpectedOutput: "3"}, {Input: "2 2", ExpectedOutput: "4"}},
		Genre:        "algo",
	})
	return f
}

type fakeTestStore struct {
	tests   map[string]*model.Test
	created []*model.Test
	finds   int
	seq     int
}

func newFakeTestStore() *fakeTestStore {
	return &fakeTestStore{tests: map[string]*model.Test{}}
}

func (f *fakeTestStore) Create(ctx context.Context, t *model.Test) error {
	f.seq++
	if t.ID == "" {
		t.ID = fmt.Sprintf("t%d", f.seq)
	}
	for i := range t.Sections {
		t.Sections[i].TestID = t.ID
	}
	f.tests[t.ID] = t
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTestStore) FindByID(ctx context.Context, id string) (*model.Test, error) {
	f.finds++
	t, ok := f.tests[id]
	if !ok {
		return nil, repository.ErrTestNotFound
	}
	return t, nil
}

func (f *fakeTestStore) List(ctx context.Context, creatorID uint, page, limit int) ([]model.Test, int64, error) {
	var out []model.Test
	for _, t := range f.tests {
		if t.CreatorID == creatorID {
			out = append(out, *t)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTestStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.tests[id]; !ok {
		return repository.ErrTestNotFound
	}
	delete(f.tests, id)
	return nil
}

type fakeDraftStore struct {
	drafts map[string]repository.Draft
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: map[string]repository.Draft{}}
}

func (f *fakeDraftStore) Save(ctx context.Context, d *repository.Draft, ttl time.Duration) error {
	f.drafts[d.ID] = *d
	return nil
}

func (f *fakeDraftStore) Get(ctx context.Context, id string) (*repository.Draft, error) {
	d, ok := f.drafts[id]
	if !ok {
		return nil, repository.ErrDraftNotFound
	}
	return &d, nil
}

func (f *fakeDraftStore) Delete(ctx context.Context, id string) error {
	delete(f.drafts, id)
	return nil
}

type fakeTestCache struct {
	tests       map[string]assessment.Test
	invalidated []string
}

func newFakeTestCache() *fakeTestCache {
	return &fakeTestCache{tests: map[string]assessment.Test{}}
}

func (f *fakeTestCache) GetTest(ctx context.Context, id string) (*assessment.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTestCache) SetTest(ctx context.Context, t assessment.Test, ttl time.Duration) error {
	f.tests[t.ID] = t
	return nil
}

func (f *fakeTestCache) InvalidateTest(ctx context.Context, id string) error {
	delete(f.tests, id)
	f.invalidated = append(f.invalidated, id)
	return nil
}

type fakeSubmissionStore struct {
	mu       sync.Mutex
	rows     map[string]*model.TestSubmission
	archived map[string]string
	failNext error
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{rows: map[string]*model.TestSubmission{}, archived: map[string]string{}}
}

func (f *fakeSubmissionStore) Create(ctx context.Context, s *model.TestSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if s.ID == "" {
		s.ID = "sub-" + s.AttemptID
	}
	f.rows[s.AttemptID] = s
	return nil
}

func (f *fakeSubmissionStore) FindByAttemptID(ctx context.Context, attemptID string) (*model.TestSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[attemptID]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return s, nil
}

func (f *fakeSubmissionStore) UpdateArchiveURL(ctx context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[id] = url
	return nil
}

func (f *fakeSubmissionStore) ListByTest(ctx context.Context, testID string, page, limit int) ([]model.TestSubmission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestSubmission
	for _, s := range f.rows {
		if s.TestID == testID {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeSubmissionStore) ListByLearner(ctx context.Context, learnerID string, page, limit int) ([]model.TestSubmission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestSubmission
	for _, s := range f.rows {
		if s.LearnerID == learnerID {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

type fakeQuizStore struct {
	mu    sync.Mutex
	saved []model.QuizResult
}

func (f *fakeQuizStore) Save(ctx context.Context, q *model.QuizResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *q)
	return nil
}

func (f *fakeQuizStore) ListByLearner(ctx context.Context, learnerID string, limit int) ([]model.QuizResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.QuizResult
	for _, q := range f.saved {
		if q.LearnerID == learnerID {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (f *fakeLocker) AcquireSubmitLock(ctx context.Context, attemptID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held[attemptID] {
		return false, nil
	}
	f.held[attemptID] = true
	return true, nil
}

func (f *fakeLocker) ReleaseSubmitLock(ctx context.Context, attemptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, attemptID)
	return nil
}

type fakeArchiver struct {
	mu       sync.Mutex
	payloads []assessment.SubmissionPayload
	err      error
}

func (f *fakeArchiver) ArchiveSubmission(ctx context.Context, p assessment.SubmissionPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return "/archives/" + archiveKey(p), nil
}

type fakeJudge struct {
	results []assessment.CaseResult
	err     error
}

func (f *fakeJudge) Run(ctx context.Context, req assessment.RunRequest) ([]assessment.CaseResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

var errBoom = errors.New("boom")

// testFixture 一套接好的服务，题库为 seededBank，试卷 t-main 含一个选择题分区和一个编程题分区
type testFixture struct {
	bank        *fakeQuestionStore
	tests       *fakeTestStore
	drafts      *fakeDraftStore
	cache       *fakeTestCache
	submissions *fakeSubmissionStore
	quizzes     *fakeQuizStore
	locks       *fakeLocker
	archive     *fakeArchiver

	bankSvc   *QuestionBankService
	testSvc   *TestService
	submitSvc *SubmissionService
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		bank:        seededBank(t),
		tests:       newFakeTestStore(),
		drafts:      newFakeDraftStore(),
		cache:       newFakeTestCache(),
		submissions: newFakeSubmissionStore(),
		quizzes:     &fakeQuizStore{},
		locks:       newFakeLocker(),
		archive:     &fakeArchiver{},
	}
	f.bankSvc = NewQuestionBankService(f.bank)
	f.testSvc = NewTestService(f.tests, f.drafts, f.cache, f.bankSvc, time.Minute, time.Hour)
	f.submitSvc = NewSubmissionService(f.submissions, f.quizzes, f.locks, f.testSvc, f.archive, time.Second)

	main, err := model.NewTestFromDomain(assessment.Test{
		ID:        "t-main",
		Title:     "Main",
		TimeLimit: 30,
		Sections: []assessment.Section{
			{ID: "s-mcq", Title: "Choice", Type: assessment.SectionMCQ, Questions: assessment.QuestionRefs{"q1", "q2"}},
			{ID: "s-code", Title: "Code", Type: assessment.SectionCoding, Questions: assessment.QuestionRefs{"c1"}},
		},
	}, 7)
	if err != nil {
		t.Fatal(err)
	}
	f.tests.tests[main.ID] = main
	return f
}

func intp(i int) *int { return &i }

package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/config"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveSubmissionLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: dir}}
	archive := NewArchiveService(cfg)

	p := assessment.SubmissionPayload{
		AttemptID: "a1",
		TestID:    "t1",
		LearnerID: "42",
		Results: map[string]assessment.SectionResult{
			"s1": {SectionID: "s1", Type: assessment.SectionMCQ, Score: 1, Total: 2, Answers: map[string]*int{"q1": intp(0), "q2": nil}},
		},
		Trigger:  assessment.TriggerManual,
		Score:    1,
		MaxScore: 2,
	}
	url, err := archive.ArchiveSubmission(context.Background(), p)
	if err != nil {
		t.Fatalf("ArchiveSubmission: %v", err)
	}
	if url != "/archives/submissions/t1/a1.json" {
		t.Errorf("url = %q", url)
	}

	b, err := os.ReadFile(filepath.Join(dir, "submissions", "t1", "a1.json"))
	if err != nil {
		t.Fatal(err)
	}
	var back assessment.SubmissionPayload
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Results["s1"].Answers["q2"] != nil || *back.Results["s1"].Answers["q1"] != 0 {
		t.Errorf("archived answers changed: %+v", back.Results["s1"].Answers)
	}
}

package assessment

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAggregateSumsNumeratorsAndDenominators(t *testing.T) {
	one := 1
	results := []SectionResult{
		{SectionID: "a", Type: SectionMCQ, Score: 3, Total: 5, Answers: map[string]*int{"q": &one}},
		{SectionID: "b", Type: SectionCoding, PassedCount: 4, Total: 6},
		{SectionID: "c", Type: SectionMCQ, Score: 0, Total: 2},
		{SectionID: "d", Type: SectionCoding},
	}
	score, maxScore := Aggregate(results)
	if score != 7 || maxScore != 13 {
		t.Fatalf("got %d/%d", score, maxScore)
	}

	m := map[string]SectionResult{}
	for _, r := range results {
		m[r.SectionID] = r
	}
	if s, mx := AggregateMap(m); s != score || mx != maxScore {
		t.Fatalf("map aggregate %d/%d", s, mx)
	}
}

func TestSectionResultJSONShape(t *testing.T) {
	coding := SectionResult{SectionID: "c", Type: SectionCoding, PassedCount: 2, Total: 2, LastRun: pass(2, 2)}
	b, err := json.Marshal(coding)
	if err != nil {
		t.Fatal(err)
	}
	if s := string(b); strings.Contains(s, "lastRun") || strings.Contains(s, "answers") || !strings.Contains(s, `"passedCount":2`) {
		t.Fatalf("coding json = %s", s)
	}

	mcq := SectionResult{SectionID: "m", Type: SectionMCQ, Score: 1, Total: 2, Answers: map[string]*int{"q1": nil}}
	b, err = json.Marshal(mcq)
	if err != nil {
		t.Fatal(err)
	}
	if s := string(b); !strings.Contains(s, `"answers":{"q1":null}`) || strings.Contains(s, "passedCount") {
		t.Fatalf("mcq json = %s", s)
	}

	var back SectionResult
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Score != 1 || back.Total != 2 {
		t.Fatalf("decoded = %+v", back)
	}
	if err := json.Unmarshal([]byte(`{"type":"essay"}`), &back); err == nil {
		t.Fatal("unknown type must fail")
	}
}

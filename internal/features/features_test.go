package features

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region tokenize-tests

func TestTokenize_KeepsPercentAndDollar(t *testing.T) {
	got := Tokenize("Margins fell 20% (to $4M), see Q3-report!")
	want := []string{"margins", "fell", "20%", "to", "$4m", "see", "q3", "report"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTokenize_Empty(t *testing.T) {
	if got := Tokenize("  ...  "); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}
}

// #endregion tokenize-tests

// #region idf-tests

func TestBuildIDF_Formula(t *testing.T) {
	idf := BuildIDF([]string{"alpha beta", "alpha gamma", "delta"})

	if v := idf["alpha"]; math.Abs(v-math.Log(3.0/3.0)) > 1e-12 {
		t.Errorf("alpha: expected 0, got %f", v)
	}
	if v := idf["beta"]; math.Abs(v-math.Log(3.0/2.0)) > 1e-12 {
		t.Errorf("beta: expected ln(1.5), got %f", v)
	}
}

func TestBuildIDF_NoDocuments(t *testing.T) {
	idf := BuildIDF(nil)
	if len(idf) != 0 {
		t.Fatalf("expected empty idf, got %d entries", len(idf))
	}
}

func TestBuildIDF_CountsDocumentOnce(t *testing.T) {
	idf := BuildIDF([]string{"risk risk risk", "other"})
	if v := idf["risk"]; math.Abs(v-math.Log(2.0/2.0)) > 1e-12 {
		t.Errorf("expected repeated token counted once per document, got %f", v)
	}
}

// #endregion idf-tests

// #region vector-tests

func TestVectorize_UnknownTokensWeighZero(t *testing.T) {
	idf := IDF{"known": 2}
	vec := Vectorize("known known unknown", idf)
	if vec["known"] != 4 {
		t.Errorf("expected tf*idf = 4, got %f", vec["known"])
	}
	if vec["unknown"] != 0 {
		t.Errorf("expected 0 for unknown token, got %f", vec["unknown"])
	}
}

func TestCosineSimilarity_Identical(t *testing.T) {
	idf := BuildIDF([]string{"alpha beta", "alpha gamma", "delta"})
	sim, ok := CosineSimilarity(Vectorize("beta beta", idf), Vectorize("beta", idf))
	if !ok {
		t.Fatal("expected comparable vectors")
	}
	if math.Abs(sim-1) > 1e-12 {
		t.Errorf("expected 1, got %f", sim)
	}
}

func TestCosineSimilarity_Disjoint(t *testing.T) {
	sim, ok := CosineSimilarity(Vector{"a": 1}, Vector{"b": 2})
	if !ok || sim != 0 {
		t.Errorf("expected comparable similarity 0, got %f ok=%v", sim, ok)
	}
}

func TestCosineSimilarity_ZeroNormIsNotComparable(t *testing.T) {
	if _, ok := CosineSimilarity(Vector{}, Vector{"a": 1}); ok {
		t.Error("expected empty vector to be not comparable")
	}
	if _, ok := CosineSimilarity(Vector{"a": 0}, Vector{"a": 1}); ok {
		t.Error("expected zero-weight vector to be not comparable")
	}
}

func TestCosineSimilarity_Negative(t *testing.T) {
	sim, ok := CosineSimilarity(Vector{"a": 1}, Vector{"a": -1})
	if !ok || math.Abs(sim+1) > 1e-12 {
		t.Errorf("expected -1, got %f ok=%v", sim, ok)
	}
}

// #endregion vector-tests

// #region lexical-tests

func TestUniqueWordCount(t *testing.T) {
	if n := UniqueWordCount("The risk, the RISK and the plan"); n != 4 {
		t.Errorf("expected 4 unique tokens, got %d", n)
	}
}

func TestCountFactMentions(t *testing.T) {
	facts := []string{"20%", "$4.2m", "35%"}
	memo := "Churn is 20% and the budget is $4.2M; 135% growth is not 35 percent."

	if n := CountFactMentions(memo, facts); n != 2 {
		t.Errorf("expected 2 facts, got %d", n)
	}
	if n := CountFactMentions("", facts); n != 0 {
		t.Errorf("expected 0 facts for empty memo, got %d", n)
	}
}

// #endregion lexical-tests

// #region counter-tests

func TestCounter_QuestionsOnlyUserTurns(t *testing.T) {
	c := NewCounter(DefaultBehaviorConfig())
	chats := []records.ChatTurn{
		{Role: records.RoleUser, Content: "What is the downside?"},
		{Role: records.RoleAssistant, Content: "Do you mean cost?"},
		{Role: records.RoleUser, Content: "Summarize it."},
	}
	if n := c.Questions(chats); n != 1 {
		t.Errorf("expected 1 question, got %d", n)
	}
}

func TestCounter_Challenges(t *testing.T) {
	c := NewCounter(DefaultBehaviorConfig())
	chats := []records.ChatTurn{
		{Role: records.RoleUser, Content: "What are the RISKS here?"},
		{Role: records.RoleUser, Content: "Walk me through the tradeoff."},
		{Role: records.RoleUser, Content: "Which assumptions hold?"},
		{Role: records.RoleUser, Content: "Asterisk is a brand name"},
		{Role: records.RoleAssistant, Content: "The evidence suggests..."},
		{Role: records.RoleUser, Content: "Just pick one"},
	}
	if n := c.Challenges(chats); n != 3 {
		t.Errorf("expected 3 challenge turns, got %d", n)
	}
}

func TestCounter_Verifications(t *testing.T) {
	c := NewCounter(DefaultBehaviorConfig())
	events := []records.Event{
		{Type: "PDF_OPENED"},
		{Type: "document_opened"},
		{Type: "document_closed"},
		{Type: "file_downloaded"},
	}
	if n := c.Verifications(events); n != 3 {
		t.Errorf("expected 3 verification events, got %d", n)
	}
}

func TestCounter_EmptyVocabulary(t *testing.T) {
	c := NewCounter(BehaviorConfig{})
	chats := []records.ChatTurn{{Role: records.RoleUser, Content: "risk?"}}
	if n := c.Challenges(chats); n != 0 {
		t.Errorf("expected 0 with empty vocabulary, got %d", n)
	}
}

// #endregion counter-tests

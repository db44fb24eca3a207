package classify

import (
	"testing"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New("")
	if err != nil {
		t.Fatalf("Failed to build classifier: %v", err)
	}
	return c
}

func TestDetect_PositiveH1B(t *testing.T) {
	c := newTestClassifier(t)

	res := c.Detect("Backend Engineer", "We offer H1B sponsorship for qualified candidates.", "Acme Corp")

	if !res.H1B {
		t.Errorf("Expected h1b=true for text with H1B sponsorship phrase")
	}
	if res.Confidence <= 0 {
		t.Errorf("Expected positive confidence, got %f", res.Confidence)
	}
}

func TestDetect_NegativeDominance(t *testing.T) {
	c := newTestClassifier(t)

	// Positive and negative signals in the same posting: negative wins.
	res := c.Detect("Software Engineer",
		"We offer h1b sponsorship. Update: no sponsorship available for this role.",
		"Acme Corp")

	if res.H1B || res.OPT || res.StemOPT {
		t.Errorf("Expected all flags suppressed by negative signal, got %+v", res)
	}
}

func TestDetect_ConfidenceMonotonicity(t *testing.T) {
	c := newTestClassifier(t)

	one := c.Detect("Engineer", "h1b sponsorship offered", "Acme")
	two := c.Detect("Engineer", "h1b sponsorship offered, stem opt candidates considered", "Acme")

	if two.Confidence < one.Confidence {
		t.Errorf("Adding a second positive signal decreased confidence: %f -> %f",
			one.Confidence, two.Confidence)
	}
}

func TestDetect_ExactPhraseOutweighsGeneric(t *testing.T) {
	c := newTestClassifier(t)

	generic := c.Detect("Engineer", "opt considered", "Acme")
	exact := c.Detect("Engineer", "opt candidates welcome", "Acme")

	if !generic.OPT || !exact.OPT {
		t.Fatalf("Expected opt=true for both postings")
	}
	if exact.Confidence < generic.Confidence {
		t.Errorf("Exact phrase should not score below generic keyword: exact=%f generic=%f",
			exact.Confidence, generic.Confidence)
	}
}

func TestDetect_WordBoundaries(t *testing.T) {
	c := newTestClassifier(t)

	// "opt" must not fire inside "adopt" or "optimization".
	res := c.Detect("Performance Engineer",
		"You will adopt modern optimization techniques.", "Acme")

	if res.OPT {
		t.Errorf("Expected opt=false for text containing only embedded matches")
	}
	if res.Confidence != 0 {
		t.Errorf("Expected zero confidence with no matches, got %f", res.Confidence)
	}
}

func TestDetect_MultiByteBoundaries(t *testing.T) {
	c := newTestClassifier(t)

	// A keyword embedded after an accented letter is not a standalone word.
	embedded := c.Detect("Engineer", "Join caféopt, our in-house barista program.", "Acme")
	if embedded.OPT {
		t.Errorf("Expected opt=false when the keyword is glued to a multi-byte letter")
	}

	// Multi-byte punctuation is still a word boundary.
	punctuated := c.Detect("Engineer", "We sponsor h1b… apply today.", "Acme")
	if !punctuated.H1B {
		t.Errorf("Expected h1b=true when the phrase is followed by multi-byte punctuation")
	}
}

func TestDetect_CaseInsensitive(t *testing.T) {
	c := newTestClassifier(t)

	res := c.Detect("ENGINEER", "STEM OPT EXTENSION SUPPORTED", "ACME")

	if !res.StemOPT {
		t.Errorf("Expected stem_opt=true regardless of case")
	}
}

func TestDetect_Deterministic(t *testing.T) {
	c := newTestClassifier(t)

	title := "Data Engineer"
	desc := "h1b sponsorship and stem opt extension supported"
	company := "Globex"

	first := c.Detect(title, desc, company)
	for i := 0; i < 5; i++ {
		again := c.Detect(title, desc, company)
		if again.H1B != first.H1B || again.OPT != first.OPT ||
			again.StemOPT != first.StemOPT || again.Confidence != first.Confidence {
			t.Fatalf("Detect is not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestDetect_ConfidenceClamped(t *testing.T) {
	c := newTestClassifier(t)

	res := c.Detect("Engineer",
		"h1b sponsorship, h-1b sponsorship, sponsor h1b, visa sponsorship available, "+
			"will sponsor, opt candidates welcome, opt/cpt, f-1 visa, stem opt, stem opt extension",
		"Acme")

	if res.Confidence > 1.0 {
		t.Errorf("Confidence must be clamped to 1.0, got %f", res.Confidence)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected saturated confidence for signal-dense text, got %f", res.Confidence)
	}
}

func TestDetect_EmptyText(t *testing.T) {
	c := newTestClassifier(t)

	res := c.Detect("", "", "")

	if res.H1B || res.OPT || res.StemOPT || res.Confidence != 0 {
		t.Errorf("Expected zero result for empty text, got %+v", res)
	}
}

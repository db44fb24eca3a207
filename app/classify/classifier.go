package classify

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Category is a visa program a positive signal argues for.
type Category string

const (
	CategoryH1B     Category = "h1b"
	CategoryOPT     Category = "opt"
	CategoryStemOPT Category = "stem_opt"
)

// Signal is a positive sponsorship phrase. Exact multi-word phrases carry a
// higher weight than generic single keywords.
type Signal struct {
	Phrase   string   `yaml:"phrase"`
	Category Category `yaml:"category"`
	Weight   float64  `yaml:"weight"`
}

// NegativeSignal suppresses all sponsorship flags for the whole posting.
type NegativeSignal struct {
	Phrase string `yaml:"phrase"`
}

// Vocabulary is the full signal table the classifier scans with.
type Vocabulary struct {
	Positive []Signal         `yaml:"positive"`
	Negative []NegativeSignal `yaml:"negative"`
}

// Result is the classifier's determination for a single posting.
type Result struct {
	H1B        bool     `json:"h1b"`
	OPT        bool     `json:"opt"`
	StemOPT    bool     `json:"stem_opt"`
	Confidence float64  `json:"confidence"`
	Matched    []string `json:"matched,omitempty"`
}

const (
	// baseConfidence is granted as soon as any positive signal matches;
	// each matched signal then adds its weight on top.
	baseConfidence = 0.25

	// negativeConfidence is reported when a negative signal suppresses the
	// posting. Negative phrasing is near-unambiguous, hence the high value.
	negativeConfidence = 0.9
)

// Classifier scans listing text for sponsorship signals. Detect is pure:
// identical input always yields identical output, so batch re-analysis
// is idempotent.
type Classifier struct {
	vocab Vocabulary
}

// New builds a classifier from the built-in vocabulary, replaced by the
// contents of signalsFile when one is configured.
func New(signalsFile string) (*Classifier, error) {
	vocab := defaultVocabulary()

	if signalsFile != "" {
		loaded, err := loadVocabulary(signalsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signal table %s: %w", signalsFile, err)
		}
		vocab = loaded
	}

	for i := range vocab.Positive {
		vocab.Positive[i].Phrase = strings.ToLower(vocab.Positive[i].Phrase)
	}
	for i := range vocab.Negative {
		vocab.Negative[i].Phrase = strings.ToLower(vocab.Negative[i].Phrase)
	}

	return &Classifier{vocab: vocab}, nil
}

// Detect scans the concatenated posting text. Any matched negative signal
// dominates: all flags are suppressed regardless of positive matches.
// Confidence is monotone in the number of matched positive signals.
func (c *Classifier) Detect(title, description, company string) Result {
	text := strings.ToLower(title + " " + company + " " + description)

	for _, neg := range c.vocab.Negative {
		if containsPhrase(text, neg.Phrase) {
			return Result{
				Confidence: negativeConfidence,
				Matched:    []string{"-" + neg.Phrase},
			}
		}
	}

	var res Result
	score := 0.0
	for _, sig := range c.vocab.Positive {
		if !containsPhrase(text, sig.Phrase) {
			continue
		}
		switch sig.Category {
		case CategoryH1B:
			res.H1B = true
		case CategoryOPT:
			res.OPT = true
		case CategoryStemOPT:
			res.StemOPT = true
		}
		score += sig.Weight
		res.Matched = append(res.Matched, sig.Phrase)
	}

	if len(res.Matched) > 0 {
		res.Confidence = clamp(baseConfidence + score)
	}

	return res
}

func loadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read file: %w", err)
	}

	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(vocab.Positive) == 0 {
		return Vocabulary{}, fmt.Errorf("signal table has no positive signals")
	}
	for i, sig := range vocab.Positive {
		switch sig.Category {
		case CategoryH1B, CategoryOPT, CategoryStemOPT:
		default:
			return Vocabulary{}, fmt.Errorf("invalid category %q at positive signal %d", sig.Category, i)
		}
		if sig.Weight <= 0 {
			return Vocabulary{}, fmt.Errorf("non-positive weight at positive signal %d", i)
		}
	}

	return vocab, nil
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Plain substring matching would let "opt" fire on "adopt" or "optimization".
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)

		beforeOK := true
		if idx > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:idx])
			beforeOK = !isWordChar(r)
		}
		afterOK := true
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			afterOK = !isWordChar(r)
		}
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

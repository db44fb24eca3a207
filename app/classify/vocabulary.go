package classify

const (
	weightExact   = 0.30
	weightGeneric = 0.15
)

// defaultVocabulary is the built-in signal table. Deployments extend it via
// the --signals-file YAML without touching this code.
func defaultVocabulary() Vocabulary {
	return Vocabulary{
		Positive: []Signal{
			{Phrase: "h1b sponsorship", Category: CategoryH1B, Weight: weightExact},
			{Phrase: "h-1b sponsorship", Category: CategoryH1B, Weight: weightExact},
			{Phrase: "h1b visa sponsorship", Category: CategoryH1B, Weight: weightExact},
			{Phrase: "sponsor h1b", Category: CategoryH1B, Weight: weightExact},
			{Phrase: "sponsor h-1b", Category: CategoryH1B, Weight: weightExact},
			{Phrase: "visa sponsorship available", Category: CategoryH1B, Weight: weightExact},
			{Phrase: "will sponsor", Category: CategoryH1B, Weight: weightGeneric},
			{Phrase: "sponsorship available", Category: CategoryH1B, Weight: weightGeneric},
			{Phrase: "h1b", Category: CategoryH1B, Weight: weightGeneric},
			{Phrase: "h-1b", Category: CategoryH1B, Weight: weightGeneric},

			{Phrase: "opt candidates welcome", Category: CategoryOPT, Weight: weightExact},
			{Phrase: "opt/cpt", Category: CategoryOPT, Weight: weightExact},
			{Phrase: "f-1 visa", Category: CategoryOPT, Weight: weightExact},
			{Phrase: "f1 visa", Category: CategoryOPT, Weight: weightExact},
			{Phrase: "opt", Category: CategoryOPT, Weight: weightGeneric},
			{Phrase: "cpt", Category: CategoryOPT, Weight: weightGeneric},

			{Phrase: "stem opt", Category: CategoryStemOPT, Weight: weightExact},
			{Phrase: "stem opt extension", Category: CategoryStemOPT, Weight: weightExact},
			{Phrase: "stem-opt", Category: CategoryStemOPT, Weight: weightExact},
		},
		Negative: []NegativeSignal{
			{Phrase: "no sponsorship"},
			{Phrase: "no visa sponsorship"},
			{Phrase: "sponsorship is not available"},
			{Phrase: "sponsorship not available"},
			{Phrase: "without sponsorship"},
			{Phrase: "unable to sponsor"},
			{Phrase: "not able to sponsor"},
			{Phrase: "cannot sponsor"},
			{Phrase: "will not sponsor"},
			{Phrase: "us citizens only"},
			{Phrase: "u.s. citizens only"},
			{Phrase: "citizenship required"},
			{Phrase: "security clearance required"},
		},
	}
}

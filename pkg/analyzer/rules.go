package analyzer

// IntentRule binds one intent to its trigger keywords. Rules are evaluated in
// slice order; the first keyword hit wins.
type IntentRule struct {
	Intent   Intent
	Keywords []string
}

// Ruleset parameterizes the analyzer. One table replaces the old idea of
// separate "basic" and "advanced" analyzer implementations.
type Ruleset struct {
	IntentRules []IntentRule
	Synonyms    map[string][]string
	DomainTerms []string
	Locations   []string
}

// DefaultRuleset covers the compliance document corpus this service fronts.
func DefaultRuleset() Ruleset {
	return Ruleset{
		IntentRules: []IntentRule{
			{
				Intent: IntentRegulatory,
				Keywords: []string{
					"regulation", "regulatory", "compliance", "compliant",
					"law", "legal", "statute", "directive", "gdpr", "hipaa",
					"sox", "requirement", "mandate", "obligation",
				},
			},
			{
				Intent: IntentRisk,
				Keywords: []string{
					"risk", "threat", "vulnerability", "exposure", "breach",
					"incident", "impact", "likelihood", "mitigation",
				},
			},
			{
				Intent: IntentProcedural,
				Keywords: []string{
					"how to", "how do", "procedure", "process", "steps",
					"workflow", "checklist", "guide", "instructions",
				},
			},
		},
		Synonyms: map[string][]string{
			"regulation": {"rule", "directive", "statute"},
			"policy":     {"guideline", "standard"},
			"risk":       {"threat", "exposure"},
			"breach":     {"incident", "violation"},
			"audit":      {"review", "assessment"},
			"data":       {"information", "records"},
			"employee":   {"staff", "personnel"},
			"vendor":     {"supplier", "third party"},
		},
		DomainTerms: []string{
			"gdpr", "hipaa", "sox", "pci dss", "iso 27001", "ccpa",
			"audit", "data protection", "retention", "encryption",
			"access control", "due diligence", "whistleblower",
			"anti-money laundering", "kyc",
		},
		Locations: []string{
			"eu", "european union", "united states", "uk", "california",
			"germany", "france", "japan", "singapore", "australia",
		},
	}
}

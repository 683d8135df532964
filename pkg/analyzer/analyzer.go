package analyzer

import (
	"regexp"
	"strings"
)

type Intent string

const (
	IntentRegulatory Intent = "regulatory_inquiry"
	IntentRisk       Intent = "risk_assessment"
	IntentProcedural Intent = "procedural_inquiry"
	IntentGeneral    Intent = "general_inquiry"
)

type Strategy string

const (
	StrategyVector   Strategy = "vector"
	StrategyKeyword  Strategy = "keyword"
	StrategyHybrid   Strategy = "hybrid"
	StrategySemantic Strategy = "semantic"
)

// Analysis is the per-query classification result. Created once, never mutated.
type Analysis struct {
	Intent     Intent
	Entities   []string
	Strategy   Strategy
	Confidence float64
}

// ExpandedQuery carries the original query plus its deduplicated variants.
type ExpandedQuery struct {
	Original       string
	Expanded       []string // deduplicated, original always first
	SynonymMap     map[string][]string
	Reformulations []string
	Confidence     float64
}

// Analyzer is a single rule-table driven implementation; behaviour is a pure
// function of the input text, so callers never wrap it in retry.
type Analyzer struct {
	rules       Ruleset
	datePattern *regexp.Regexp
	numPattern  *regexp.Regexp
}

func NewAnalyzer(rules Ruleset) *Analyzer {
	return &Analyzer{
		rules:       rules,
		datePattern: regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})\b`),
		numPattern:  regexp.MustCompile(`\b\d+(\.\d+)?\b`),
	}
}

// Analyze runs the full classification: intent, entities, strategy, confidence.
func (a *Analyzer) Analyze(query string) Analysis {
	intent := a.ClassifyIntent(query)
	entities := a.ExtractEntities(query)

	confidence := 0.5
	if intent != IntentGeneral {
		confidence += 0.25
	}
	if len(entities) > 0 {
		confidence += 0.15
	}

	return Analysis{
		Intent:     intent,
		Entities:   entities,
		Strategy:   a.SelectStrategy(intent, entities),
		Confidence: capConfidence(confidence),
	}
}

// ClassifyIntent checks pattern groups in fixed precedence order
// (regulatory, risk, procedural) and returns on first match.
// Absence of matches yields the general category, never an error.
func (a *Analyzer) ClassifyIntent(query string) Intent {
	lowered := strings.ToLower(query)
	for _, rule := range a.rules.IntentRules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return rule.Intent
			}
		}
	}
	return IntentGeneral
}

// ExtractEntities returns the deduplicated union of dates, numbers, known
// domain terms and known locations found in the query.
func (a *Analyzer) ExtractEntities(query string) []string {
	lowered := strings.ToLower(query)

	var entities []string
	seen := make(map[string]bool)
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		entities = append(entities, value)
	}

	for _, match := range a.datePattern.FindAllString(lowered, -1) {
		add(match)
	}
	// Numbers already captured as part of a date stay attributed to the date
	stripped := a.datePattern.ReplaceAllString(lowered, " ")
	for _, match := range a.numPattern.FindAllString(stripped, -1) {
		add(match)
	}
	for _, term := range a.rules.DomainTerms {
		if strings.Contains(lowered, term) {
			add(term)
		}
	}
	for _, location := range a.rules.Locations {
		if containsWord(lowered, location) {
			add(location)
		}
	}

	return entities
}

// SelectStrategy maps intent and entity density to a retrieval strategy.
func (a *Analyzer) SelectStrategy(intent Intent, entities []string) Strategy {
	// Two or more anchored entities usually mean the user wants both the
	// exact references and the surrounding context.
	if len(entities) >= 2 {
		return StrategyHybrid
	}

	switch intent {
	case IntentRegulatory:
		if len(entities) > 0 {
			return StrategyKeyword
		}
		return StrategyHybrid
	case IntentRisk:
		return StrategySemantic
	case IntentProcedural:
		return StrategyVector
	default:
		return StrategyVector
	}
}

// Expand substitutes known synonyms into copies of the query and appends
// templated reformulations, then deduplicates. Confidence grows with the
// number of expansions produced, capped at 1.0.
func (a *Analyzer) Expand(query string) ExpandedQuery {
	trimmed := strings.TrimSpace(query)
	lowered := strings.ToLower(trimmed)

	expanded := []string{trimmed}
	seen := map[string]bool{lowered: true}
	appendUnique := func(candidate string) {
		key := strings.ToLower(strings.TrimSpace(candidate))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		expanded = append(expanded, strings.TrimSpace(candidate))
	}

	synonymMap := make(map[string][]string)
	for term, synonyms := range a.rules.Synonyms {
		if !containsWord(lowered, term) {
			continue
		}
		synonymMap[term] = synonyms
		for _, synonym := range synonyms {
			appendUnique(replaceWord(trimmed, term, synonym))
		}
	}

	topic := reformulationTopic(trimmed)
	var reformulations []string
	if topic != "" {
		reformulations = []string{
			"What are the " + topic + "?",
			"How to " + topic + "?",
		}
		for _, reformulation := range reformulations {
			appendUnique(reformulation)
		}
	}

	// One step per produced variant beyond the original.
	confidence := 0.5 + 0.1*float64(len(expanded)-1)

	return ExpandedQuery{
		Original:       trimmed,
		Expanded:       expanded,
		SynonymMap:     synonymMap,
		Reformulations: reformulations,
		Confidence:     capConfidence(confidence),
	}
}

func capConfidence(value float64) float64 {
	if value > 1.0 {
		return 1.0
	}
	return value
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		found := strings.Index(text[idx:], word)
		if found < 0 {
			return false
		}
		start := idx + found
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// replaceWord substitutes whole-word, case-insensitive occurrences only.
func replaceWord(text, word, replacement string) string {
	var b strings.Builder
	lowered := strings.ToLower(text)
	word = strings.ToLower(word)

	idx := 0
	for idx <= len(text)-len(word) {
		found := strings.Index(lowered[idx:], word)
		if found < 0 {
			break
		}
		start := idx + found
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			b.WriteString(text[idx:start])
			b.WriteString(replacement)
			idx = end
		} else {
			b.WriteString(text[idx : start+1])
			idx = start + 1
		}
	}
	b.WriteString(text[idx:])
	return b.String()
}

// reformulationTopic strips the interrogative scaffolding so templates read
// naturally ("what are the gdpr retention rules?" -> "gdpr retention rules").
func reformulationTopic(query string) string {
	topic := strings.TrimSuffix(strings.TrimSpace(query), "?")
	lowered := strings.ToLower(topic)
	for _, prefix := range []string{
		"what are the ", "what are ", "what is the ", "what is ",
		"how do i ", "how do we ", "how to ", "tell me about ",
	} {
		if strings.HasPrefix(lowered, prefix) {
			topic = topic[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(topic)
}

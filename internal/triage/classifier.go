// Package triage suggests specialties for a free-text symptom description.
// A keyword rule engine answers first; an external classifier may be
// consulted when the rules find nothing or when configured to prefer it.
package triage

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
)

type Method string

const (
	MethodRules Method = "RULES"
	MethodAI    Method = "AI"
)

const (
	MinSymptomLength = 10

	Disclaimer = "Esta sugestão é baseada nos sintomas informados e não substitui avaliação médica profissional. " +
		"Procure atendimento presencial para diagnóstico e tratamento adequados."
	aiNotice = " Sugestão gerada por Inteligência Artificial."

	fallbackScore         = 90
	fallbackJustification = "Avaliação médica geral recomendada"
)

type Suggestion struct {
	Specialty     catalog.Specialty
	Score         int
	Justification string
}

type Result struct {
	Suggestions []Suggestion
	Method      Method
	Disclaimer  string
}

// Classifier is the external probabilistic classifier.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Suggestion, error)
}

type Service struct {
	ai       Classifier
	preferAI bool
}

// NewService builds the triage service. ai may be nil to run on rules only.
func NewService(ai Classifier, preferAI bool) *Service {
	return &Service{ai: ai, preferAI: preferAI}
}

// Suggest never fails because of the external classifier: any classifier
// error degrades to the rule result.
func (s *Service) Suggest(ctx context.Context, symptoms string) (*Result, error) {
	text := strings.TrimSpace(symptoms)
	if utf8.RuneCountInString(text) < MinSymptomLength {
		return nil, apperr.Validation("symptoms", "must have at least %d characters", MinSymptomLength)
	}

	rules := matchRules(normalize(text))

	if s.ai != nil && (len(rules) == 0 || s.preferAI) {
		suggestions, err := s.ai.Classify(ctx, text)
		if err == nil {
			suggestions = sanitize(suggestions)
		}
		switch {
		case err != nil:
			log.Ctx(ctx).Warn().Err(err).Msg("classifier unavailable, using rule engine")
		case len(suggestions) == 0:
			log.Ctx(ctx).Warn().Msg("classifier returned no usable suggestions, using rule engine")
		default:
			return &Result{Suggestions: suggestions, Method: MethodAI, Disclaimer: Disclaimer + aiNotice}, nil
		}
	}

	if len(rules) == 0 {
		rules = []Suggestion{{
			Specialty:     catalog.ClinicoGeral,
			Score:         fallbackScore,
			Justification: fallbackJustification,
		}}
	}
	return &Result{Suggestions: rules, Method: MethodRules, Disclaimer: Disclaimer}, nil
}

// sanitize drops unknown and repeated specialties, clamps scores to 0..100,
// fills missing justifications and keeps the top suggestions.
func sanitize(in []Suggestion) []Suggestion {
	seen := make(map[catalog.Specialty]bool, len(in))
	out := make([]Suggestion, 0, len(in))
	for _, s := range in {
		if !s.Specialty.Valid() || seen[s.Specialty] {
			continue
		}
		seen[s.Specialty] = true
		s.Score = max(0, min(s.Score, maxScore))
		s.Justification = strings.TrimSpace(s.Justification)
		if s.Justification == "" {
			s.Justification = justificationFor(s.Specialty)
		}
		out = append(out, s)
	}
	return rank(out)
}

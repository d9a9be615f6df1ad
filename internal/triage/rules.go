package triage

import (
	"sort"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
)

const (
	pointsPerMatch = 10
	maxScore       = 100
	maxSuggestions = 3
)

var keywords = map[catalog.Specialty][]string{
	catalog.Cardiologia: {
		"dor no peito", "palpitação", "arritmia", "pressão alta", "hipertensão",
		"coração", "infarto", "angina", "falta de ar", "dispneia",
	},
	catalog.Dermatologia: {
		"pele", "manchas", "coceira", "alergia", "acne", "espinha",
		"verruga", "micose", "psoríase", "eczema", "dermatite",
	},
	catalog.Ortopedia: {
		"dor nas costas", "lombar", "joelho", "ombro", "coluna",
		"fratura", "entorse", "articulação", "osso", "artrite",
	},
	catalog.Pediatria: {
		"criança", "bebê", "filho", "filha", "recém-nascido",
		"vacinação", "crescimento", "desenvolvimento infantil",
	},
	catalog.Ginecologia: {
		"menstruação", "cólica menstrual", "gravidez", "gestação", "útero",
		"ovário", "preventivo", "mama", "menopausa",
	},
	catalog.Oftalmologia: {
		"olho", "visão", "vista", "enxergar", "cegueira",
		"conjuntivite", "terçol", "catarata", "glaucoma",
	},
	catalog.Otorrinolaringologia: {
		"ouvido", "nariz", "garganta", "sinusite", "rinite",
		"amigdalite", "surdez", "zumbido", "vertigem", "tontura",
	},
	catalog.Pneumologia: {
		"pulmão", "tosse", "asma", "bronquite", "falta de ar",
		"pneumonia", "tuberculose", "respiração", "chiado no peito",
	},
	catalog.Gastroenterologia: {
		"estômago", "intestino", "diarreia", "prisão de ventre", "azia",
		"refluxo", "gastrite", "úlcera", "fígado", "vesícula",
	},
	catalog.Neurologia: {
		"cabeça", "enxaqueca", "cefaleia", "tontura", "vertigem",
		"convulsão", "epilepsia", "parkinson", "alzheimer", "formigamento",
	},
	catalog.Psiquiatria: {
		"ansiedade", "depressão", "insônia", "pânico", "estresse",
		"tristeza", "medo", "angústia", "pensamentos suicidas",
	},
	catalog.Endocrinologia: {
		"diabetes", "tireoide", "obesidade", "hormônio", "metabolismo",
		"glicose", "colesterol", "triglicerídeos",
	},
}

var justifications = map[catalog.Specialty]string{
	catalog.Cardiologia:          "Sintomas relacionados ao sistema cardiovascular detectados",
	catalog.Dermatologia:         "Sintomas relacionados à pele e anexos identificados",
	catalog.Ortopedia:            "Sintomas relacionados ao sistema musculoesquelético",
	catalog.Pediatria:            "Atendimento infantil identificado",
	catalog.Ginecologia:          "Sintomas relacionados à saúde da mulher",
	catalog.Oftalmologia:         "Sintomas relacionados à visão e olhos",
	catalog.Otorrinolaringologia: "Sintomas relacionados a ouvido, nariz e garganta",
	catalog.Pneumologia:          "Sintomas relacionados ao sistema respiratório",
	catalog.Gastroenterologia:    "Sintomas relacionados ao sistema digestivo",
	catalog.Neurologia:           "Sintomas relacionados ao sistema nervoso",
	catalog.Psiquiatria:          "Sintomas relacionados à saúde mental",
	catalog.Endocrinologia:       "Sintomas relacionados ao sistema endócrino",
}

const defaultJustification = "Sintomas compatíveis com esta especialidade"

func justificationFor(s catalog.Specialty) string {
	if j, ok := justifications[s]; ok {
		return j
	}
	return defaultJustification
}

// normalizedKeywords is the keyword table folded the same way as input text.
var normalizedKeywords = func() map[catalog.Specialty][]string {
	out := make(map[catalog.Specialty][]string, len(keywords))
	for s, words := range keywords {
		for _, w := range words {
			out[s] = append(out[s], normalize(w))
		}
	}
	return out
}()

// matchRules scores every specialty with at least one phrase in text. text
// must already be normalized.
func matchRules(text string) []Suggestion {
	var out []Suggestion
	for specialty, phrases := range normalizedKeywords {
		points := 0
		for _, p := range phrases {
			if strings.Contains(text, p) {
				points += pointsPerMatch
			}
		}
		if points == 0 {
			continue
		}
		out = append(out, Suggestion{
			Specialty:     specialty,
			Score:         min(points, maxScore),
			Justification: justificationFor(specialty),
		})
	}
	return rank(out)
}

// rank sorts by score descending then specialty name and keeps the top
// suggestions.
func rank(ss []Suggestion) []Suggestion {
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Score != ss[j].Score {
			return ss[i].Score > ss[j].Score
		}
		return ss[i].Specialty < ss[j].Specialty
	})
	if len(ss) > maxSuggestions {
		ss = ss[:maxSuggestions]
	}
	return ss
}

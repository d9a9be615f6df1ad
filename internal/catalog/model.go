package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Specialty string

const (
	ClinicoGeral         Specialty = "CLINICO_GERAL"
	Pediatria            Specialty = "PEDIATRIA"
	Ginecologia          Specialty = "GINECOLOGIA"
	Cardiologia          Specialty = "CARDIOLOGIA"
	Ortopedia            Specialty = "ORTOPEDIA"
	Dermatologia         Specialty = "DERMATOLOGIA"
	Oftalmologia         Specialty = "OFTALMOLOGIA"
	Otorrinolaringologia Specialty = "OTORRINOLARINGOLOGIA"
	Neurologia           Specialty = "NEUROLOGIA"
	Psiquiatria          Specialty = "PSIQUIATRIA"
	Urologia             Specialty = "UROLOGIA"
	Endocrinologia       Specialty = "ENDOCRINOLOGIA"
	Gastroenterologia    Specialty = "GASTROENTEROLOGIA"
	Pneumologia          Specialty = "PNEUMOLOGIA"
	Reumatologia         Specialty = "REUMATOLOGIA"
)

var specialtyNames = map[Specialty]string{
	ClinicoGeral:         "Clínico Geral",
	Pediatria:            "Pediatria",
	Ginecologia:          "Ginecologia",
	Cardiologia:          "Cardiologia",
	Ortopedia:            "Ortopedia",
	Dermatologia:         "Dermatologia",
	Oftalmologia:         "Oftalmologia",
	Otorrinolaringologia: "Otorrinolaringologia",
	Neurologia:           "Neurologia",
	Psiquiatria:          "Psiquiatria",
	Urologia:             "Urologia",
	Endocrinologia:       "Endocrinologia",
	Gastroenterologia:    "Gastroenterologia",
	Pneumologia:          "Pneumologia",
	Reumatologia:         "Reumatologia",
}

func (s Specialty) Valid() bool {
	_, ok := specialtyNames[s]
	return ok
}

// Description is the display name used by the front-end.
func (s Specialty) Description() string {
	if d, ok := specialtyNames[s]; ok {
		return d
	}
	return string(s)
}

// ParseSpecialty is case-insensitive and accepts spaces for underscores.
func ParseSpecialty(raw string) (Specialty, bool) {
	s := Specialty(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "_"))
	return s, s.Valid()
}

// Specialties returns every known specialty sorted by code.
func Specialties() []Specialty {
	out := make([]Specialty, 0, len(specialtyNames))
	for s := range specialtyNames {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Professional struct {
	ID        uuid.UUID
	Name      string
	Specialty Specialty
	UnitID    uuid.UUID
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Unit struct {
	ID        uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

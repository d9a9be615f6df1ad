package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

type sample struct {
	Specialty catalog.Specialty `validate:"specialty"`
	StartTime slot.Clock        `validate:"clock"`
	Reason    string            `validate:"notblank"`
}

func TestStructReportsFieldAsSnakeCase(t *testing.T) {
	err := Struct(sample{Specialty: "ASTROLOGIA", StartTime: slot.NewClock(8, 0), Reason: "x"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	e, _ := apperr.As(err)
	assert.Equal(t, "specialty", e.Field)
}

func TestStructClockAndBlank(t *testing.T) {
	err := Struct(sample{Specialty: catalog.Cardiologia, StartTime: slot.Clock(24 * 60), Reason: "x"})
	e, _ := apperr.As(err)
	assert.Equal(t, "start_time", e.Field)

	err = Struct(sample{Specialty: catalog.Cardiologia, StartTime: 0, Reason: "   "})
	e, _ = apperr.As(err)
	assert.Equal(t, "reason", e.Field)
	assert.Equal(t, "is required", e.Message)
}

func TestStructOK(t *testing.T) {
	assert.NoError(t, Struct(sample{Specialty: catalog.Pediatria, StartTime: slot.NewClock(23, 59), Reason: "ok"}))
}

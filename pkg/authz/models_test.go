package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// hourTS builds a timestamp falling on the given UTC hour of epoch day
// zero plus the given day offset.
func hourTS(day int64, hour int64) int64 {
	return day*86400 + hour*3600
}

func TestTimeRestriction_BusinessHours(t *testing.T) {
	restriction := BusinessHours()

	assert.False(t, restriction.Satisfied(hourTS(0, 8)))
	assert.True(t, restriction.Satisfied(hourTS(0, 9)))
	assert.True(t, restriction.Satisfied(hourTS(0, 12)))
	assert.True(t, restriction.Satisfied(hourTS(0, 17)))
	assert.False(t, restriction.Satisfied(hourTS(0, 18)))
}

func TestTimeRestriction_HourRange(t *testing.T) {
	t.Run("plain range is inclusive", func(t *testing.T) {
		restriction := HourRange(9, 12)
		assert.True(t, restriction.Satisfied(hourTS(0, 9)))
		assert.True(t, restriction.Satisfied(hourTS(0, 12)))
		assert.False(t, restriction.Satisfied(hourTS(0, 13)))
	})

	t.Run("overnight wrap", func(t *testing.T) {
		restriction := HourRange(22, 6)
		assert.True(t, restriction.Satisfied(hourTS(0, 23)))
		assert.True(t, restriction.Satisfied(hourTS(0, 2)))
		assert.False(t, restriction.Satisfied(hourTS(0, 12)))
		assert.True(t, restriction.Satisfied(hourTS(0, 22)))
		assert.True(t, restriction.Satisfied(hourTS(0, 6)))
		assert.False(t, restriction.Satisfied(hourTS(0, 7)))
	})
}

func TestTimeRestriction_DaysOfWeek(t *testing.T) {
	// Epoch day zero was a Thursday; day 3 after epoch is a Sunday.
	sunday := hourTS(3, 12)
	thursday := hourTS(0, 12)

	sundayOnly := DaysOfWeek(1 << 0)
	assert.True(t, sundayOnly.Satisfied(sunday))
	assert.False(t, sundayOnly.Satisfied(thursday))

	thursdayOnly := DaysOfWeek(1 << 4)
	assert.True(t, thursdayOnly.Satisfied(thursday))
	assert.False(t, thursdayOnly.Satisfied(sunday))
}

func TestTimeRestriction_None(t *testing.T) {
	assert.True(t, NoTimeRestriction().Satisfied(0))
	assert.True(t, NoTimeRestriction().Satisfied(hourTS(12345, 3)))

	// Zero-valued restriction behaves as none for stored policies that
	// never set the field.
	var zero TimeRestriction
	assert.True(t, zero.Satisfied(hourTS(0, 3)))
}

func TestActiveWindows(t *testing.T) {
	t.Run("assignment", func(t *testing.T) {
		never := RoleAssignment{ExpiresAt: 0}
		assert.True(t, never.Active(1<<40))

		timed := RoleAssignment{ExpiresAt: 100}
		assert.True(t, timed.Active(99))
		assert.False(t, timed.Active(100))
		assert.False(t, timed.Active(101))
	})

	t.Run("consent requires a future expiry", func(t *testing.T) {
		grant := ConsentGrant{ExpiresAt: 100}
		assert.True(t, grant.Active(99))
		assert.False(t, grant.Active(100))

		revoked := ConsentGrant{ExpiresAt: 100, Revoked: true}
		assert.False(t, revoked.Active(50))
	})
}

func TestSensitivityOrdering(t *testing.T) {
	assert.True(t, SensitivityPublic < SensitivityStandard)
	assert.True(t, SensitivityStandard < SensitivityConfidential)
	assert.True(t, SensitivityConfidential < SensitivityRestricted)
}

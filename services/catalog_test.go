package services

import (
	"testing"
	"time"

	"daily-challenge-service/models"

	"github.com/stretchr/testify/assert"
)

func TestWeeklySchedule_Shape(t *testing.T) {
	valid := map[models.MissionType]bool{}
	for _, mt := range models.MissionTypes {
		valid[mt] = true
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		day := MissionsFor(d, true)
		assert.Len(t, day.Required, 3, d.String())
		for _, m := range day.Required {
			assert.False(t, m.IsPremium, m.ID)
			assert.Positive(t, m.BaseXP, m.ID)
			assert.True(t, valid[m.Type], m.ID)
		}
		for _, m := range day.Bonus {
			assert.True(t, m.IsPremium, m.ID)
		}
	}
}

func TestMissionsFor_Monday(t *testing.T) {
	free := MissionsFor(time.Monday, false)
	var xp []int
	for _, m := range free.Required {
		xp = append(xp, m.BaseXP)
	}
	assert.Equal(t, []int{20, 20, 25}, xp)
	assert.Empty(t, free.Bonus)
	assert.NotNil(t, free.Bonus)

	assert.NotEmpty(t, MissionsFor(time.Monday, true).Bonus)
}

func TestMissionsFor_ReturnsCopies(t *testing.T) {
	day := MissionsFor(time.Monday, true)
	day.Required[0].BaseXP = 9999
	day.Bonus[0].Title = "changed"

	again := MissionsFor(time.Monday, true)
	assert.Equal(t, 20, again.Required[0].BaseXP)
	assert.NotEqual(t, "changed", again.Bonus[0].Title)
}

func TestFindMission(t *testing.T) {
	m, ok := FindMission(time.Monday, "hero-small-win")
	assert.True(t, ok)
	assert.Equal(t, models.MissionHero, m.Type)

	_, ok = FindMission(time.Monday, "scripts-say-no")
	assert.False(t, ok)
	assert.True(t, KnownMission("scripts-say-no"))
	assert.False(t, KnownMission("nope"))

	assert.Equal(t, []string{"calm-breathing-reset", "selfcare-hydrate-rest", "hero-small-win"}, RequiredIDs(time.Monday))
}

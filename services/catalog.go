package services

import (
	"time"

	"daily-challenge-service/models"
)

// Base XP per mission kind; the weekly schedule below mixes them.
var (
	breathingReset  = models.Mission{ID: "calm-breathing-reset", Type: models.MissionCalm, Title: "Two-minute breathing reset", BaseXP: 20}
	groundingWalk   = models.Mission{ID: "calm-grounding-walk", Type: models.MissionCalm, Title: "5-4-3-2-1 grounding walk", BaseXP: 20}
	hydrateAndRest  = models.Mission{ID: "selfcare-hydrate-rest", Type: models.MissionSelfcare, Title: "Water, snack, ten quiet minutes", BaseXP: 20}
	kindNote        = models.Mission{ID: "selfcare-kind-note", Type: models.MissionSelfcare, Title: "Write yourself a kind note", BaseXP: 20}
	smallWin        = models.Mission{ID: "hero-small-win", Type: models.MissionHero, Title: "Do one thing you've been avoiding", BaseXP: 25}
	braveAsk        = models.Mission{ID: "hero-brave-ask", Type: models.MissionHero, Title: "Ask for something you need", BaseXP: 25}
	boundaryScript  = models.Mission{ID: "scripts-boundary", Type: models.MissionScripts, Title: "Practise a boundary script", BaseXP: 20}
	sayNoScript     = models.Mission{ID: "scripts-say-no", Type: models.MissionScripts, Title: "Practise saying no", BaseXP: 20}
	textAFriend     = models.Mission{ID: "support-text-friend", Type: models.MissionSupport, Title: "Message someone you trust", BaseXP: 25}
	buildSOSCard    = models.Mission{ID: "sos-card-build", Type: models.MissionSOSCard, Title: "Update your SOS card", BaseXP: 25}
	roleplayHard    = models.Mission{ID: "roleplay-hard-talk", Type: models.MissionRoleplay, Title: "Roleplay a hard conversation", BaseXP: 30, IsPremium: true}
	roleplayRepair  = models.Mission{ID: "roleplay-repair", Type: models.MissionRoleplay, Title: "Roleplay repairing a rupture", BaseXP: 30, IsPremium: true}
	riskMapTriggers = models.Mission{ID: "risk-map-triggers", Type: models.MissionRiskMap, Title: "Map this week's triggers", BaseXP: 35, IsPremium: true}
	riskMapPlan     = models.Mission{ID: "risk-map-plan", Type: models.MissionRiskMap, Title: "Plan around a risky situation", BaseXP: 35, IsPremium: true}
)

// weeklySchedule is indexed by time.Weekday. Every day requires three missions.
var weeklySchedule = [7]models.DayMissions{
	time.Sunday: {
		Required: []models.Mission{groundingWalk, kindNote, textAFriend},
		Bonus:    []models.Mission{riskMapPlan},
	},
	time.Monday: {
		Required: []models.Mission{breathingReset, hydrateAndRest, smallWin},
		Bonus:    []models.Mission{roleplayHard, riskMapTriggers},
	},
	time.Tuesday: {
		Required: []models.Mission{groundingWalk, boundaryScript, textAFriend},
		Bonus:    []models.Mission{roleplayRepair},
	},
	time.Wednesday: {
		Required: []models.Mission{breathingReset, kindNote, buildSOSCard},
		Bonus:    []models.Mission{riskMapTriggers},
	},
	time.Thursday: {
		Required: []models.Mission{groundingWalk, sayNoScript, braveAsk},
		Bonus:    []models.Mission{roleplayHard},
	},
	time.Friday: {
		Required: []models.Mission{breathingReset, hydrateAndRest, textAFriend},
		Bonus:    []models.Mission{roleplayRepair, riskMapPlan},
	},
	time.Saturday: {
		Required: []models.Mission{kindNote, boundaryScript, smallWin},
		Bonus:    []models.Mission{riskMapTriggers},
	},
}

// MissionsFor returns a copy of the day's schedule. Bonus missions are only
// visible to premium users.
func MissionsFor(day time.Weekday, premium bool) models.DayMissions {
	src := weeklySchedule[day]
	out := models.DayMissions{
		Required: append([]models.Mission(nil), src.Required...),
		Bonus:    []models.Mission{},
	}
	if premium {
		out.Bonus = append(out.Bonus, src.Bonus...)
	}
	return out
}

// FindMission looks a mission up in the day's schedule (required or bonus).
func FindMission(day time.Weekday, id string) (models.Mission, bool) {
	src := weeklySchedule[day]
	for _, list := range [][]models.Mission{src.Required, src.Bonus} {
		for _, m := range list {
			if m.ID == id {
				return m, true
			}
		}
	}
	return models.Mission{}, false
}

// KnownMission reports whether id appears anywhere in the catalog.
func KnownMission(id string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if _, ok := FindMission(d, id); ok {
			return true
		}
	}
	return false
}

// RequiredIDs lists the mission ids that make a perfect day.
func RequiredIDs(day time.Weekday) []string {
	req := weeklySchedule[day].Required
	ids := make([]string, len(req))
	for i, m := range req {
		ids[i] = m.ID
	}
	return ids
}

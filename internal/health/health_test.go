package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partlife-backend/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * Day)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		pct      float64
		expected Status
	}{
		{name: "zero", pct: 0, expected: StatusCritical},
		{name: "just below ten", pct: 9.999, expected: StatusCritical},
		{name: "exactly ten", pct: 10, expected: StatusWarning},
		{name: "just below thirty", pct: 29.99, expected: StatusWarning},
		{name: "exactly thirty", pct: 30, expected: StatusGood},
		{name: "full", pct: 100, expected: StatusGood},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.pct))
		})
	}
}

func TestDerive_Boundaries(t *testing.T) {
	def := model.PartDefinition{ID: "p1", Name: "Belt", MaxLifetimeDays: 100}
	machines := []model.Machine{{ID: "m1", Name: "CNC"}}

	testCases := []struct {
		name           string
		installedDays  int
		expectedHealth float64
		expectedStatus Status
	}{
		{name: "new part", installedDays: 0, expectedHealth: 100, expectedStatus: StatusGood},
		{name: "70 days is exactly 30 percent", installedDays: 70, expectedHealth: 30, expectedStatus: StatusGood},
		{name: "71 days", installedDays: 71, expectedHealth: 29, expectedStatus: StatusWarning},
		{name: "90 days is exactly 10 percent", installedDays: 90, expectedHealth: 10, expectedStatus: StatusWarning},
		{name: "95 days", installedDays: 95, expectedHealth: 5, expectedStatus: StatusCritical},
		{name: "past lifetime clamps at zero", installedDays: 250, expectedHealth: 0, expectedStatus: StatusCritical},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parts := []model.InstalledPart{{
				ID: "i1", DefinitionID: "p1", MachineID: "m1",
				InstallDate: daysAgo(tc.installedDays), CurrentDaysUsed: 3,
			}}

			view := Derive(parts, []model.PartDefinition{def}, machines, testNow)

			require.Len(t, view.Parts, 1)
			got := view.Parts[0]
			assert.InDelta(t, tc.expectedHealth, got.HealthPercentage, 1e-9)
			assert.Equal(t, tc.expectedStatus, got.Status)
			assert.Equal(t, tc.installedDays, got.CurrentDaysUsed, "stored days must be ignored")
			assert.Equal(t, "CNC", got.MachineName)
		})
	}
}

func TestDerive_PartialDayIsFloored(t *testing.T) {
	def := model.PartDefinition{ID: "p1", MaxLifetimeDays: 10}
	parts := []model.InstalledPart{{ID: "i1", DefinitionID: "p1", MachineID: "m1", InstallDate: testNow.Add(-47 * time.Hour)}}

	view := Derive(parts, []model.PartDefinition{def}, []model.Machine{{ID: "m1"}}, testNow)

	require.Len(t, view.Parts, 1)
	assert.Equal(t, 1, view.Parts[0].CurrentDaysUsed)
}

func TestDerive_FutureInstallDateUsesAbsoluteDistance(t *testing.T) {
	def := model.PartDefinition{ID: "p1", MaxLifetimeDays: 10}
	parts := []model.InstalledPart{{ID: "i1", DefinitionID: "p1", MachineID: "m1", InstallDate: testNow.Add(3 * Day)}}

	view := Derive(parts, []model.PartDefinition{def}, []model.Machine{{ID: "m1"}}, testNow)

	require.Len(t, view.Parts, 1)
	assert.Equal(t, 3, view.Parts[0].CurrentDaysUsed)
	assert.InDelta(t, 70.0, view.Parts[0].HealthPercentage, 1e-9)
}

func TestDerive_OrphansAreReportedNotReturned(t *testing.T) {
	defs := []model.PartDefinition{{ID: "p1", MaxLifetimeDays: 10}}
	machines := []model.Machine{{ID: "m1"}}
	parts := []model.InstalledPart{
		{ID: "a", DefinitionID: "p1", MachineID: "m1", InstallDate: testNow},
		{ID: "b", DefinitionID: "gone", MachineID: "m1", InstallDate: testNow},
		{ID: "c", DefinitionID: "p1", MachineID: "gone", InstallDate: testNow},
		{ID: "d", DefinitionID: "p1", MachineID: "m1", InstallDate: testNow},
	}

	view := Derive(parts, defs, machines, testNow)

	require.Len(t, view.Parts, 2)
	assert.Equal(t, "a", view.Parts[0].ID)
	assert.Equal(t, "d", view.Parts[1].ID)
	assert.Equal(t, []Orphan{
		{PartID: "b", MachineID: "m1", DefinitionID: "gone", MissingDefinition: true},
		{PartID: "c", MachineID: "gone", DefinitionID: "p1", MissingMachine: true},
	}, view.Orphans)
}

func TestPercentage_NonPositiveLifetime(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 0.0, Percentage(5, -1))
}

func TestHealthAlwaysWithinRange(t *testing.T) {
	for lifetime := 1; lifetime <= 50; lifetime++ {
		for used := 0; used <= 120; used++ {
			pct := Percentage(used, lifetime)
			assert.GreaterOrEqual(t, pct, 0.0)
			assert.LessOrEqual(t, pct, 100.0)
		}
	}
}

package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partlife-backend/internal/model"
)

func TestAddMachine(t *testing.T) {
	d := fixture()

	next, change, err := AddMachine(d, model.Machine{Name: "Robotic Arm Delta", Location: "Zone A"}, &seqIDs{})

	require.NoError(t, err)
	require.Len(t, next.Machines, 3)
	assert.Equal(t, "m_1", next.Machines[2].ID)
	assert.Equal(t, model.MachineActive, next.Machines[2].Status)
	assert.Equal(t, next.Machines[2:], change.Machines)

	_, _, err = AddMachine(d, model.Machine{Name: "X", Status: "broken"}, &seqIDs{})
	assert.ErrorIs(t, err, ErrInvalid)
	_, _, err = AddMachine(d, model.Machine{Name: " "}, &seqIDs{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEditMachine(t *testing.T) {
	d := fixture()

	next, _, err := EditMachine(d, model.Machine{ID: "m2", Name: "Beta II", Status: model.MachineOffline})
	require.NoError(t, err)
	assert.Equal(t, "Beta II", next.Machines[1].Name)
	assert.Equal(t, "Injection Molder Beta", d.Machines[1].Name)

	_, _, err = EditMachine(d, model.Machine{ID: "zz", Name: "Ghost", Status: model.MachineActive})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddAndEditDefinition(t *testing.T) {
	d := fixture()

	next, change, err := AddDefinition(d, model.PartDefinition{Name: "Filter Unit", Category: "Consumable", MaxLifetimeDays: 30, Cost: decimal.NewFromInt(25)}, &seqIDs{})
	require.NoError(t, err)
	assert.Equal(t, "p_1", change.Definitions[0].ID)

	edited := change.Definitions[0]
	edited.MaxLifetimeDays = 45
	next, _, err = EditDefinition(next, edited)
	require.NoError(t, err)
	assert.Equal(t, 45, next.Definitions[2].MaxLifetimeDays)

	testCases := []struct {
		name string
		def  model.PartDefinition
	}{
		{name: "zero lifetime", def: model.PartDefinition{Name: "A", MaxLifetimeDays: 0}},
		{name: "negative cost", def: model.PartDefinition{Name: "A", MaxLifetimeDays: 1, Cost: decimal.NewFromInt(-1)}},
		{name: "blank name", def: model.PartDefinition{Name: "", MaxLifetimeDays: 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := AddDefinition(d, tc.def, &seqIDs{})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

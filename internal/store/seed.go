package store

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"partlife-backend/internal/model"
)

// DemoDataset returns the demo catalog used to seed an empty database:
// four machines, five part definitions and a random spread of installed
// parts at various stages of wear.
func DemoDataset(now time.Time, rng *rand.Rand) model.Dataset {
	d := model.Dataset{
		Machines: []model.Machine{
			{ID: "m1", Name: "CNC Router Alpha", Location: "Zone A", Model: "X-2000", Status: model.MachineActive},
			{ID: "m2", Name: "Injection Molder Beta", Location: "Zone B", Model: "Inj-500", Status: model.MachineActive},
			{ID: "m3", Name: "Conveyor Belt System", Location: "Zone C", Model: "Conv-Pro", Status: model.MachineMaintenance},
			{ID: "m4", Name: "Robotic Arm Delta", Location: "Zone A", Model: "Arm-V6", Status: model.MachineActive},
		},
		Definitions: []model.PartDefinition{
			{ID: "p1", Name: "Spindle Bearing", Category: "Mechanical", MaxLifetimeDays: 365, Cost: decimal.NewFromInt(250)},
			{ID: "p2", Name: "Hydraulic Pump", Category: "Hydraulic", MaxLifetimeDays: 730, Cost: decimal.NewFromInt(1200)},
			{ID: "p3", Name: "Servo Motor", Category: "Electrical", MaxLifetimeDays: 1095, Cost: decimal.NewFromInt(800)},
			{ID: "p4", Name: "Drive Belt", Category: "Mechanical", MaxLifetimeDays: 180, Cost: decimal.NewFromInt(45)},
			{ID: "p5", Name: "Filter Unit", Category: "Consumable", MaxLifetimeDays: 30, Cost: decimal.NewFromInt(25)},
		},
	}

	serials := make(map[string]struct{})
	counter := 1
	for _, m := range d.Machines {
		for _, def := range d.Definitions {
			if rng.Float64() <= 0.3 {
				continue
			}
			days := int(float64(def.MaxLifetimeDays) * rng.Float64())

			var serial string
			for {
				serial = fmt.Sprintf("SN-%04d", rng.IntN(10000))
				if _, taken := serials[serial]; !taken {
					break
				}
			}
			serials[serial] = struct{}{}

			d.Parts = append(d.Parts, model.InstalledPart{
				ID:              fmt.Sprintf("inst_%d", counter),
				DefinitionID:    def.ID,
				MachineID:       m.ID,
				InstallDate:     now.Add(-time.Duration(days) * 24 * time.Hour),
				CurrentDaysUsed: days,
				PartNumber:      serial,
			})
			counter++
		}
	}
	d.NumberParts()
	return d
}

package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/machines", "")
	require.Equal(t, http.StatusOK, w.Code)
	var machines []machineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &machines))
	require.Len(t, machines, 2)
	assert.Equal(t, "m1", machines[0].ID)
	assert.Equal(t, 1, machines[0].Parts.Critical)
	assert.Equal(t, 1, machines[1].Parts.Good)

	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "create", method: http.MethodPost, path: "/api/machines", body: `{"name":"Laser Cutter","location":"Bay 3"}`, wantStatus: http.StatusCreated},
		{name: "create without name", method: http.MethodPost, path: "/api/machines", body: `{"location":"Bay 3"}`, wantStatus: http.StatusBadRequest},
		{name: "edit", method: http.MethodPut, path: "/api/machines/m1", body: `{"name":"CNC Router A","status":"maintenance"}`, wantStatus: http.StatusOK},
		{name: "edit unknown", method: http.MethodPut, path: "/api/machines/m9", body: `{"name":"Ghost","status":"active"}`, wantStatus: http.StatusNotFound},
		{name: "edit bad status", method: http.MethodPut, path: "/api/machines/m1", body: `{"name":"CNC","status":"exploded"}`, wantStatus: http.StatusBadRequest},
		{name: "delete unconfirmed", method: http.MethodDelete, path: "/api/machines/m2", wantStatus: http.StatusPreconditionRequired},
		{name: "delete unknown", method: http.MethodDelete, path: "/api/machines/m9?confirm=true", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}

	t.Run("delete cascades to parts", func(t *testing.T) {
		w := env.do(http.MethodDelete, "/api/machines/m2?confirm=true", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deletedParts":1}`, w.Body.String())
		for _, p := range env.fleet.Snapshot().Parts {
			assert.NotEqual(t, "m2", p.MachineID)
		}
	})
}

func TestDefinitionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/definitions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var defs []definitionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &defs))
	require.Len(t, defs, 2)
	assert.Equal(t, "Mechanical", defs[0].Category)
	assert.Equal(t, 1, defs[0].Installed)
	assert.InDelta(t, 5.0, defs[0].AverageHealth, 0.01)
	assert.Equal(t, "45", defs[1].Cost.String())

	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "create", method: http.MethodPost, path: "/api/definitions", body: `{"name":"Air Filter","category":"Air","maxLifetimeDays":90,"cost":12.5}`, wantStatus: http.StatusCreated},
		{name: "create without lifetime", method: http.MethodPost, path: "/api/definitions", body: `{"name":"Air Filter"}`, wantStatus: http.StatusBadRequest},
		{name: "edit", method: http.MethodPut, path: "/api/definitions/p2", body: `{"name":"Hydraulic Seal","category":"Hydraulics","maxLifetimeDays":250,"cost":"50.00"}`, wantStatus: http.StatusOK},
		{name: "delete unconfirmed", method: http.MethodDelete, path: "/api/definitions/p1", wantStatus: http.StatusPreconditionRequired},
		{name: "delete in use", method: http.MethodDelete, path: "/api/definitions/p1?confirm=true", wantStatus: http.StatusConflict},
		{name: "delete unknown", method: http.MethodDelete, path: "/api/definitions/p9?confirm=true", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}

	t.Run("delete unused", func(t *testing.T) {
		require.True(t, env.fleet.DeleteInstalledPart("i2"))
		w := env.do(http.MethodDelete, "/api/definitions/p2?confirm=true", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Len(t, env.fleet.Snapshot().Definitions, 2, "p1 and the created definition remain")
	})
}

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"partlife-backend/config"
	"partlife-backend/internal/db"
	"partlife-backend/internal/fleet"
	"partlife-backend/internal/health"
	"partlife-backend/internal/lifecycle"
	"partlife-backend/internal/metrics"
	"partlife-backend/internal/model"
	"partlife-backend/internal/store"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type nopPersister struct{}

func (nopPersister) Enqueue(lifecycle.Change)    {}
func (nopPersister) EnqueueRestore(model.Dataset) {}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s_%d", prefix, s.n)
}

type fakeSummarizer struct{ text string }

func (f fakeSummarizer) Summarize(context.Context, []health.PopulatedPart, []model.Machine) string {
	return f.text
}

type fakeArchiver struct {
	names []string
	err   error
}

func (f *fakeArchiver) Put(_ context.Context, name string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return "backups/" + name, nil
}

func fixture() model.Dataset {
	return model.Dataset{
		Machines: []model.Machine{
			{ID: "m1", Name: "CNC Router Alpha", Status: model.MachineActive},
			{ID: "m2", Name: "Hydraulic Press Beta", Status: model.MachineActive},
		},
		Definitions: []model.PartDefinition{
			{ID: "p1", Name: "Spindle Bearing", Category: "Mechanical", MaxLifetimeDays: 100, Cost: decimal.NewFromInt(250)},
			{ID: "p2", Name: "Hydraulic Seal", Category: "Hydraulics", MaxLifetimeDays: 200, Cost: decimal.NewFromInt(45)},
		},
		Parts: []model.InstalledPart{
			{ID: "i1", DefinitionID: "p1", MachineID: "m1", InstallDate: testNow.Add(-95 * health.Day), PartNumber: "SN-1"},
			{ID: "i2", DefinitionID: "p2", MachineID: "m2", InstallDate: testNow.Add(-10 * health.Day), PartNumber: "SN-2"},
		},
	}
}

type testEnv struct {
	router  *gin.Engine
	fleet   *fleet.Manager
	handler *Handler
	db      *gorm.DB
}

type envOption func(*Handler)

func withNarrative(s Summarizer) envOption { return func(h *Handler) { h.narrative = s } }
func withArchive(a Archiver) envOption     { return func(h *Handler) { h.archive = a } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		sqlDB.Close()
	})

	s := store.NewGormStore(gdb, zap.NewNop())
	require.NoError(t, s.SaveMachines(context.Background(), fixture().Machines))

	mtr := metrics.New()
	f := fleet.NewManager(fixture(), nopPersister{}, zap.NewNop(), mtr,
		fleet.WithClock(func() time.Time { return testNow }),
		fleet.WithIDs(&seqIDs{}),
	)
	h := NewHandler(f, s, &webpush.Options{VAPIDPublicKey: "test-public-key"}, nil, nil, zap.NewNop())
	for _, opt := range opts {
		opt(h)
	}

	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTL: time.Minute}
	return &testEnv{
		router:  NewRouter(h, cfg, mtr, zap.NewNop()),
		fleet:   f,
		handler: h,
		db:      gdb,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

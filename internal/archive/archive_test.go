package archive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"partlife-backend/config"
)

// mockRoundTripper accepts PUTs and remembers them by path.
type mockRoundTripper struct {
	mu      sync.Mutex
	status  int
	objects map[string]stored
}

type stored struct {
	body        string
	contentType string
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return &http.Response{StatusCode: m.status, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	m.objects[req.URL.Path] = stored{body: string(body), contentType: req.Header.Get("Content-Type")}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
}

func newTestArchiver(t *testing.T, rt *mockRoundTripper) *Archiver {
	a, err := New(context.Background(), config.ArchiveConfig{
		Bucket:          "fleet-backups",
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		Prefix:          "backups/",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, zap.NewNop(), func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.RetryMaxAttempts = 1
	})
	require.NoError(t, err)
	return a
}

func TestArchiver_Put(t *testing.T) {
	rt := &mockRoundTripper{objects: map[string]stored{}}
	a := newTestArchiver(t, rt)

	key, err := a.Put(context.Background(), "lifecycle_pro_backup_2024-03-01.json", []byte(`{"machines":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "backups/lifecycle_pro_backup_2024-03-01.json", key)

	obj, ok := rt.objects["/fleet-backups/backups/lifecycle_pro_backup_2024-03-01.json"]
	require.True(t, ok)
	assert.True(t, strings.Contains(obj.body, `{"machines":[]}`))
	assert.Equal(t, "application/json", obj.contentType)
}

func TestArchiver_PutFailure(t *testing.T) {
	rt := &mockRoundTripper{status: http.StatusForbidden, objects: map[string]stored{}}
	a := newTestArchiver(t, rt)

	_, err := a.Put(context.Background(), "x.json", []byte(`{}`))
	assert.Error(t, err)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), config.ArchiveConfig{Region: "us-east-1"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

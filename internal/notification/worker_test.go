package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"partlife-backend/internal/metrics"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

const subscriptionQuery = `SELECT .* FROM "push_subscriptions".*JOIN .*subscription_machine_mapping.*WHERE .*smm\.machine_id = \$1`

func testAlert(machineID string) Alert {
	return Alert{
		MachineID:   machineID,
		MachineName: "CNC Router Alpha",
		PartID:      "inst_1",
		PartName:    "Spindle Bearing",
		PartNumber:  "SN-1",
		Health:      4.3,
	}
}

func TestAlert_Message(t *testing.T) {
	assert.Equal(t, "Spindle Bearing on CNC Router Alpha is critical: 4.3% life remaining (serial SN-1)", testAlert("m1").Message())
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{}, zap.NewNop(), metrics.New())

	wp.Dispatch(testAlert("m1"))

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "m1", job.MachineID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	m := metrics.New()
	wp := NewWorkerPool(1, gormDB, &webpush.Options{}, zap.NewNop(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)

				var got pushPayload
				assert.NoError(t, json.Unmarshal(payload, &got))
				assert.Equal(t, "Part critical", got.Title)
				assert.Equal(t, "inst_1", got.PartID)
				assert.Contains(t, got.Body, "Spindle Bearing on CNC Router Alpha")
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs("m1").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", time.Now()))

		wp.Dispatch(testAlert("m1"))
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs("m2").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "test_p256dh_expired", "test_auth_expired", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(testAlert("m2"))

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSent.WithLabelValues("expired")))
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send")
				return nil, fmt.Errorf("unexpected")
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs("m3").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}))

		wp.Dispatch(testAlert("m3"))

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})
}

package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-go/internal/drive"
)

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("upload", nil, 10*time.Millisecond)
	m.ObserveOperation("upload", nil, 20*time.Millisecond)
	m.ObserveOperation("delete", fmt.Errorf("%w: file x", drive.ErrForbidden), time.Millisecond)
	m.ObserveOperation("delete", errors.New("unexpected"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("upload", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("delete", "forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("delete", "internal")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))
}

func TestNotificationDropped(t *testing.T) {
	m := New()
	m.NotificationDropped()
	m.NotificationDropped()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsDropped))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveOperation("purge", nil, time.Millisecond)

	path := filepath.Join(t.TempDir(), "drive.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `drive_operations_total{operation="purge",outcome="ok"} 1`)
	assert.Contains(t, string(data), "drive_notifications_dropped_total 0")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "drive.prom"))
	assert.Error(t, err)
}

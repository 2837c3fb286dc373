package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatAuditLine(t *testing.T) {
	line := FormatAuditLine(AuthEvent{
		Type:       UserBanned,
		TenantID:   "t1",
		UserID:     "u1",
		ActorID:    "admin-1",
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.Equal(t, "[2026-03-01T10:00:00Z] user.banned | tenant_id=\"t1\" | user_id=\"u1\" | actor_id=\"admin-1\"\n", line)
}

func TestHandleAppendsToAuditFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := NewAuditConsumer("", "auth.events", dir, zap.NewNop())

	for _, subject := range []string{"sensor-01", "sensor-02"} {
		body, err := json.Marshal(AuthEvent{Type: MQTTUserCreated, Subject: subject, OccurredAt: time.Now()})
		require.NoError(t, err)
		require.NoError(t, c.Handle(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, auditFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], `subject="sensor-02"`)
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c := NewAuditConsumer("", "auth.events", t.TempDir(), zap.NewNop())
	require.Error(t, c.Handle([]byte("{")))
	require.Error(t, c.Handle([]byte(`{"subject":"x"}`)))
}

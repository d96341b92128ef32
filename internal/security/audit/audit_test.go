package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
)

func TestLogMutation(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := identity.WithPrincipal(context.Background(), identity.Principal{UserID: 7})
	ctx = identity.WithRequestID(ctx, "req-1")
	al.LogMutation(ctx, "delete", "charts", 3, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit", entry["channel"])
	assert.Equal(t, "7", entry["user_id"])
	assert.Equal(t, "3", entry["resource_id"])
	assert.Equal(t, "failed", entry["status"])
	assert.Equal(t, "boom", entry["details"])
	assert.Equal(t, "req-1", entry["request_id"])
}

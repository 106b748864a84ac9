package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotification_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status ProcessingStatus
		want   bool
	}{
		{"new", StatusNew, false},
		{"error", StatusError, true},
		{"complete", StatusComplete, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{Status: tt.status}
			assert.Equal(t, tt.want, n.IsTerminal())
		})
	}
}

func TestValidBusinessStatus(t *testing.T) {
	assert.True(t, ValidBusinessStatus(BusinessPending))
	assert.True(t, ValidBusinessStatus(BusinessProcessing))
	assert.True(t, ValidBusinessStatus(BusinessComplete))
	assert.True(t, ValidBusinessStatus(BusinessFailed))
	assert.False(t, ValidBusinessStatus("new"))
	assert.False(t, ValidBusinessStatus(""))
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", TruncateError("short"))

	long := strings.Repeat("x", MaxErrorDescriptionLen+100)
	assert.Len(t, TruncateError(long), MaxErrorDescriptionLen)
}

func TestNotification_RawPrefix(t *testing.T) {
	n := &Notification{Data: strings.Repeat("a", RawPrefixLen+50)}
	assert.Len(t, n.RawPrefix(), RawPrefixLen)

	n = &Notification{Data: "tiny"}
	assert.Equal(t, "tiny", n.RawPrefix())
}

func TestProcessedAtSentinel_IsEpoch(t *testing.T) {
	assert.Equal(t, time.Unix(0, 0).UTC(), ProcessedAtSentinel)
}

func TestNewCategory(t *testing.T) {
	c := NewCategory("payments")
	assert.Equal(t, "payments", c.Name)
	assert.True(t, c.IsActive)
	assert.Len(t, c.ExternalID, 32)
	assert.NotContains(t, c.ExternalID, "-")
}

func TestNewEnvelope(t *testing.T) {
	now := time.Now().UTC()
	n := &Notification{
		ID:          42,
		InsertedAt:  now,
		ClientIP:    "10.1.2.3",
		ContentType: "application/json",
		Data:        `{"balance": 100}`,
		ParsedBody:  map[string]any{"balance": float64(100)},
	}

	env := NewEnvelope(n, "cat-ext-id", map[string]any{"account": "g1"})

	assert.Equal(t, int64(42), env.ID)
	assert.Equal(t, "cat-ext-id", env.Category)
	assert.Equal(t, n.ParsedBody, env.ParsedBody)
	assert.Equal(t, `{"balance": 100}`, env.RawPrefix)
	assert.Equal(t, "10.1.2.3", env.SourceIP)
	assert.Equal(t, now, env.CreatedAt)
	assert.Equal(t, "g1", env.Hints["account"])
	assert.Equal(t, EnvelopeSource, env.Metadata.Source)
	assert.Equal(t, EnvelopeVersion, env.Metadata.Version)
	assert.NotEmpty(t, env.Metadata.Timestamp)
}

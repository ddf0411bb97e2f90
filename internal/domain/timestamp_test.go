package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		nanos uint64
	}{
		{"zero", 0},
		{"now-ish", 1756600000000000000},
		{"beyond float64 precision", 9007199254740993},
		{"max uint64", 18446744073709551615},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := TimestampFromNanos(tt.nanos)
			back, err := ts.Nanos()
			require.NoError(t, err)
			assert.Equal(t, tt.nanos, back)
		})
	}
}

func TestTimestamp_Invalid(t *testing.T) {
	_, err := Timestamp("abc").Nanos()
	assert.Error(t, err)

	_, err = Timestamp("-5").Nanos()
	assert.Error(t, err)

	assert.True(t, Timestamp("abc").Time().IsZero())
}

func TestTimestamp_FromTime(t *testing.T) {
	now := time.Unix(1756600000, 123456789)
	ts := TimestampFromTime(now)

	assert.Equal(t, Timestamp("1756600000123456789"), ts)
	assert.True(t, ts.Time().Equal(now))
}

func TestTimestamp_Before(t *testing.T) {
	assert.True(t, Timestamp("100").Before(Timestamp("200")))
	assert.False(t, Timestamp("200").Before(Timestamp("100")))
	assert.False(t, Timestamp("100").Before(Timestamp("100")))
}

func TestMarkdownFromHTML(t *testing.T) {
	content, err := MarkdownFromHTML("<h1>Hello</h1><p>This is <strong>bold</strong>.</p>")
	require.NoError(t, err)

	assert.Contains(t, content.Text, "# Hello")
	assert.Contains(t, content.Text, "**bold**")
	assert.Equal(t, ContentKindMarkdown, content.Kind())
}

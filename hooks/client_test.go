package hooks

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintJournal(t *testing.T) {
	opened := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	closed := opened.Add(time.Minute)
	entries := []journal.Entry{
		{SessionID: "s2", Identity: auth.Identity{Subject: "bob"}, OpenedAt: opened},
		{SessionID: "s1", Identity: auth.Identity{Subject: "alice"}, OpenedAt: opened, ClosedAt: &closed, CloseReason: "expired"},
	}

	var buf bytes.Buffer
	require.NoError(t, printJournal(&buf, entries))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SESSION"))
	assert.Equal(t, []string{"s2", "bob", opened.Format(time.RFC3339), "-", "-"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"s1", "alice", opened.Format(time.RFC3339), closed.Format(time.RFC3339), "expired"}, strings.Fields(lines[2]))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]any{"tools": []any{}}))
	assert.Equal(t, "{\n  \"tools\": []\n}\n", buf.String())
}

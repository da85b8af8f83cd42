package auditlog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendFormat(t *testing.T) {
	var sb strings.Builder
	l := New(&sb)
	l.Clock = func() time.Time { return time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC) }

	l.Info("counted %d messages in %s", 45, "Inbox")
	l.Warning("declined")

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "2024-03-10 09:30:00 [INFO] counted 45 messages in Inbox", lines[0])
	require.Equal(t, "2024-03-10 09:30:00 [WARNING] declined", lines[1])
}

func TestLevels(t *testing.T) {
	var sb strings.Builder
	l := New(&sb)
	l.Clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	l.Success("purged")
	l.Error("boom: %v", "timeout")

	out := sb.String()
	require.Contains(t, out, "[SUCCESS] purged")
	require.Contains(t, out, "[ERROR] boom: timeout")
}

package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/model"
)

func TestHandleMessage_AppendsOneLinePerMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mail.log")
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for _, to := range []string{"ann@x.test", "bob@x.test"} {
		env := NewEnvelope(model.MailMessage{
			ID: "m-" + to, Type: model.MailConfirm, To: to, Subject: "[Confirmed] Tue", ICS: "BEGIN:VCALENDAR",
		}, "Lab", at)
		body, err := json.Marshal(env)
		require.NoError(t, err)
		require.NoError(t, handleMessage(path, body))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`[2026-10-19T09:00:00Z] Mail delivered | id=m-ann@x.test | type=confirm | to=ann@x.test | subject="[Confirmed] Tue" | ics=true`,
		lines[0])
	assert.Contains(t, lines[1], "to=bob@x.test")
}

func TestHandleMessage_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail.log")
	assert.Error(t, handleMessage(path, []byte("{not json")))
	assert.Error(t, handleMessage(path, []byte(`{"id":"x"}`)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

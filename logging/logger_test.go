package logging

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomFormatter_Format(t *testing.T) {
	f := &CustomFormatter{SystemName: "tasks-service"}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "rollup skipped",
		Data:    logrus.Fields{"taskId": "t1", "projectId": "p1"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "Date: 2024-03-09, Time: 14:30:00")
	assert.Contains(t, line, "Event Source: tasks-service")
	assert.Contains(t, line, "Event Type: WARNING")
	assert.Contains(t, line, "Message: rollup skipped")
	assert.Contains(t, line, "projectId=p1, taskId=t1")
	assert.Regexp(t, `Event ID: [0-9a-f-]{36}`, line)
	assert.True(t, line[len(line)-1] == '\n')
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("class", "MSS").Info("prediction succeeded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "prediction succeeded", entry["msg"])
	assert.Equal(t, "MSS", entry["class"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewTextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "WARN", "text")
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewInvalid(t *testing.T) {
	_, err := New("loud", "text")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	assert.NotNil(t, log)
}

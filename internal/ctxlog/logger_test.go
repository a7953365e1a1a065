package ctxlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONFormatWritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json", &buf)
	logger.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestNew_TextFormatWritesKeyValueOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "text", &buf)
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_DebugLevelUnlocksDebugLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "text", &buf)
	logger.Debug("quiet")
	assert.Contains(t, buf.String(), "quiet")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("bogus", "text", &buf)
	logger.Debug("should not appear")
	assert.NotContains(t, buf.String(), "should not appear")
}

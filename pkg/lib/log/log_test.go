package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, l)

	l, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLazyLogger_FollowsSetup(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, LevelInfo, FormatJSON)
	defer Setup(nil, LevelInfo, FormatText)

	lg := Logger("core/test")
	lg.Debug("不应输出")
	lg.Info("关联已建立", "association", "a1")

	out := buf.String()
	assert.NotContains(t, out, "不应输出")
	assert.Contains(t, out, `"component":"core/test"`)
	assert.Contains(t, out, `"association":"a1"`)

	SetLevel(LevelDebug)
	assert.True(t, lg.Enabled(LevelDebug))
	assert.Equal(t, LevelDebug, CurrentLevel())
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghij", 8))
}

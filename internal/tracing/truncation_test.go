package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "a*", MaskPII("ab"))
	assert.Equal(t, "a**d", MaskPII("abcd"))
	// 长字符串保留首尾各2个字符
	masked := MaskPII("user@example.com")
	assert.True(t, strings.HasPrefix(masked, "us"))
	assert.True(t, strings.HasSuffix(masked, "om"))
	assert.NotContains(t, masked, "example")
}

func TestTruncateStringKeepsShortValues(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
}

func TestTruncateStringMiddleEllipsis(t *testing.T) {
	long := strings.Repeat("x", 50) + "MIDDLE" + strings.Repeat("y", 50)
	truncated := TruncateString(long, 21)
	assert.LessOrEqual(t, len([]rune(truncated)), 21)
	assert.Contains(t, truncated, "...")
	assert.NotContains(t, truncated, "MIDDLE")
}

func TestSafeAttributeValueMasksSensitiveNames(t *testing.T) {
	// 属性名包含敏感关键字时走掩码
	masked := SafeAttributeValue("user.email", "user@example.com", DefaultMaxLength)
	assert.NotEqual(t, "user@example.com", masked)

	// 普通属性只做截断
	plain := SafeAttributeValue("sql.query", "SELECT 1", DefaultMaxLength)
	assert.Equal(t, "SELECT 1", plain)
}

func TestSafeRedisKey(t *testing.T) {
	key := "app:profile:view:" + strings.Repeat("u", 200)
	assert.LessOrEqual(t, len([]rune(SafeRedisKey(key))), MaxRedisLength)
}

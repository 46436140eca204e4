package tracing

import (
	"regexp"
	"strings"
)

// span 属性长度上限, 按字符计
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxHeaderLength  = 100
	MaxResumeLength  = 150
	MaxPromptLength  = 300
)

// sensitiveKeys 属性名包含这些片段时, 值按个人信息掩码
//
// 简历文件名通常带候选人姓名, 所以 filename 也算在内。
var sensitiveKeys = []string{
	"name", "姓名", "filename",
	"email", "phone", "电话", "address", "地址",
	"id_card", "身份证",
	"password", "secret", "token", "api_key",
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
)

// SafeAttributeValue 敏感属性返回掩码值, 其余按 maxLength 截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, key := range sensitiveKeys {
		if strings.Contains(lower, key) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾少量字符, 其余替换为 *
//
//	张三 -> 张*, 王小明 -> 王*明, 13812345678 -> 13*******78
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// MaskContacts 掩码文本中的邮箱和电话号码
func MaskContacts(s string) string {
	s = emailRe.ReplaceAllStringFunc(s, MaskPII)
	return phoneRe.ReplaceAllStringFunc(s, MaskPII)
}

// TruncateString 超长时保留首尾, 中间以 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := max((maxLength-3)/2, 1)
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 截断 SQL 语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeResumeContent 简历原文先掩码联系方式再截断
func SafeResumeContent(content string) string {
	return TruncateString(MaskContacts(content), MaxResumeLength)
}

// SafePrompt 截断提示词或模型回复
func SafePrompt(s string) string {
	return TruncateString(s, MaxPromptLength)
}

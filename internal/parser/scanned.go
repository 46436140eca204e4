package parser

import (
	"fmt"

	"resume-structurer/internal/types"
)

// 扫描件判定阈值, 经验值
const (
	MinTextChars      = 800
	TextCharsPerMille = 2 // 每 1000 字节至少应有的字符数
)

// ScannedThreshold 返回 max(800, floor(bufferSize*0.002))
func ScannedThreshold(bufferSize int) int {
	return max(MinTextChars, bufferSize*TextCharsPerMille/1000)
}

// IsLikelyScanned 提取出的文本相对文件大小过少时认为是扫描件
func IsLikelyScanned(textLen, bufferSize int) bool {
	return textLen < ScannedThreshold(bufferSize)
}

// ScannedResult 文本层过少时的终态结果, 保留已提取的原始文本
func ScannedResult(rawText string, bufferSize, textLen int) *types.ParsedResume {
	r := &types.ParsedResume{
		RawText: rawText,
		Scanned: true,
		Notes:   fmt.Sprintf("PDF appears scanned or non-selectable (bytes=%d, text=%d). No OCR attempted.", bufferSize, textLen),
	}
	r.EnsureSlices()
	return r
}

// ExtractionFailedResult 文本提取失败时的终态结果
func ExtractionFailedResult(err error) *types.ParsedResume {
	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	r := &types.ParsedResume{
		Scanned:          true,
		Notes:            "Failed to parse PDF: " + msg,
		ExtractionFailed: true,
	}
	r.EnsureSlices()
	return r
}

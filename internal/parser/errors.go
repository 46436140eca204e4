package parser

import "errors"

var (
	// ErrNoPages PDF 中没有任何页面
	ErrNoPages = errors.New("PDF contains no pages")
	// ErrUnreadablePDF 文件无法按 PDF 解析
	ErrUnreadablePDF = errors.New("unreadable PDF")
)

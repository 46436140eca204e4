package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tikaXHTML = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>resume.pdf</title><meta name="xmpTPg:NPages" content="2"/></head><body>
<div class="page"><p>Jane Doe</p><p>Experience
Engineer — Acme Jan 2019 – Dec 2020</p><p/></div>
<div class="page"><p>Skills</p><p>Go, SQL &amp; Docker</p><div class="annotation"><p>github.com/jane</p></div></div>
</body></html>`

// 创建一个模拟的Tika服务器，用于测试
func createMockTikaServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tika" || r.Method != http.MethodPut {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "text/html", r.Header.Get("Accept"))
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/xhtml+xml")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewTikaPageExtractor(t *testing.T) {
	extractor := NewTikaPageExtractor("http://localhost:9998/")
	require.NotNil(t, extractor)
	assert.Equal(t, "http://localhost:9998", extractor.ServerURL, "末尾的斜杠应被去掉")
	assert.Equal(t, 60*time.Second, extractor.Client.Timeout, "HTTP客户端超时应为60秒")
	assert.False(t, extractor.extractAnnotations)

	custom := NewTikaPageExtractor("http://tika:9998", WithTimeout(5*time.Second), WithAnnotations(true))
	assert.Equal(t, 5*time.Second, custom.Client.Timeout)
	assert.True(t, custom.extractAnnotations)
}

func TestTikaExtractPages(t *testing.T) {
	server := createMockTikaServer(t, http.StatusOK, tikaXHTML)
	extractor := NewTikaPageExtractor(server.URL)

	pages, err := extractor.ExtractPages(context.Background(), []byte("%PDF-1.5 mock"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Jane Doe", "Experience", "Engineer — Acme Jan 2019 – Dec 2020"},
		{"Skills", "Go, SQL & Docker", "github.com/jane"},
	}, pages)
}

func TestTikaExtractPagesServerError(t *testing.T) {
	server := createMockTikaServer(t, http.StatusInternalServerError, "boom")
	extractor := NewTikaPageExtractor(server.URL)

	_, err := extractor.ExtractPages(context.Background(), []byte("%PDF-1.5 mock"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestTikaExtractPagesEmptyDocument(t *testing.T) {
	server := createMockTikaServer(t, http.StatusOK, `<html><head><title>x</title></head><body></body></html>`)
	extractor := NewTikaPageExtractor(server.URL)

	_, err := extractor.ExtractPages(context.Background(), []byte("%PDF-1.5 mock"))
	assert.True(t, errors.Is(err, ErrNoPages))
}

func TestSplitXHTMLWithoutPageDivs(t *testing.T) {
	pages, err := splitXHTMLPages(strings.NewReader(`<html><body><h1>Education</h1><p>BSc <b>Computer</b> Science</p><br/>MIT</body></html>`))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Education", "BSc Computer Science", "MIT"}}, pages)
}

func TestTikaPagesThroughStructurer(t *testing.T) {
	server := createMockTikaServer(t, http.StatusOK, tikaXHTML)
	s := NewStructurer(NewTikaPageExtractor(server.URL))

	// 文本很短, 按扫描件处理但保留原文
	r := s.Parse(context.Background(), []byte("%PDF-1.5 mock"))
	assert.True(t, r.Scanned)
	assert.Contains(t, r.RawText, "Engineer — Acme Jan 2019 – Dec 2020")
}

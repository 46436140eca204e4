package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleRows(t *testing.T) {
	texts := []pdf.Text{
		{S: "o", X: 36, Y: 700.5, W: 5, FontSize: 10},
		{S: "H", X: 10, Y: 700, W: 5, FontSize: 10},
		{S: "i", X: 15, Y: 700, W: 3, FontSize: 10},
		{S: "\n", X: 0, Y: 690, W: 0, FontSize: 10},
		{S: "G", X: 30, Y: 699, W: 6, FontSize: 10},
		{S: "N", X: 10, Y: 680, W: 5, FontSize: 10},
		{S: "ext", X: 16, Y: 680, W: 12, FontSize: 10},
	}

	assert.Equal(t, []string{"Hi Go", "Next"}, assembleRows(texts))
	assert.Nil(t, assembleRows(nil))
}

func TestJoinRowKeepsExistingSpaces(t *testing.T) {
	row := []pdf.Text{
		{S: "Work ", X: 10, Y: 500, W: 25, FontSize: 10},
		{S: "Experience", X: 40, Y: 500, W: 50, FontSize: 10},
	}
	assert.Equal(t, "Work Experience", joinRow(row))
}

func TestNativeExtractPagesInvalidPDF(t *testing.T) {
	extractor := NewNativePageExtractor(WithPageWorkers(2))
	assert.Equal(t, 2, extractor.workers)

	_, err := extractor.ExtractPages(context.Background(), []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadablePDF))
}

func TestNativeExtractorIgnoresInvalidWorkerCount(t *testing.T) {
	extractor := NewNativePageExtractor(WithPageWorkers(0))
	assert.Equal(t, 4, extractor.workers)
}

package parser

import (
	"context"
	"errors"
	"io"
	"testing"

	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDocParser struct {
	docs []*schema.Document
	err  error
}

func (p *stubDocParser) Parse(ctx context.Context, reader io.Reader, opts ...einoParser.Option) ([]*schema.Document, error) {
	if _, err := io.ReadAll(reader); err != nil {
		return nil, err
	}
	return p.docs, p.err
}

func TestNewEinoPageExtractor(t *testing.T) {
	extractor, err := NewEinoPageExtractor(context.Background())
	require.NoError(t, err)
	require.NotNil(t, extractor)
	assert.NotNil(t, extractor.parser)
}

func TestEinoExtractPagesKeepsPageOrder(t *testing.T) {
	stub := &stubDocParser{docs: []*schema.Document{
		{Content: "Jane Doe\nExperience\nEngineer at Acme"},
		{Content: "Skills\nGo, SQL"},
		nil,
	}}
	extractor, err := NewEinoPageExtractor(context.Background(), WithEinoParser(stub))
	require.NoError(t, err)

	pages, err := extractor.ExtractPages(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Jane Doe", "Experience", "Engineer at Acme"},
		{"Skills", "Go, SQL"},
		nil,
	}, pages)
}

func TestEinoExtractPagesErrors(t *testing.T) {
	extractor, err := NewEinoPageExtractor(context.Background(), WithEinoParser(&stubDocParser{}))
	require.NoError(t, err)
	_, err = extractor.ExtractPages(context.Background(), []byte("%PDF"))
	assert.True(t, errors.Is(err, ErrNoPages))

	extractor, err = NewEinoPageExtractor(context.Background(), WithEinoParser(&stubDocParser{err: errors.New("bad xref")}))
	require.NoError(t, err)
	_, err = extractor.ExtractPages(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad xref")
}

func TestEinoExtractFromInvalidPDF(t *testing.T) {
	extractor, err := NewEinoPageExtractor(context.Background())
	require.NoError(t, err)

	r := NewStructurer(extractor).Parse(context.Background(), []byte("this is not a pdf"))
	assert.True(t, r.Scanned)
	assert.Contains(t, r.Notes, "Failed to parse PDF:")
}

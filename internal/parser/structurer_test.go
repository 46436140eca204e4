package parser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-structurer/internal/types"
)

func TestNormalizeLinesIdempotent(t *testing.T) {
	inputs := []string{
		"  Jane\u00a0 Doe \t \nExperience:\t\t\n\n   \n\tBuilt  things  \r\n",
		"a\u00a0 \u00a0b\n\n\nc   ",
		"",
		"\t\t\n \u00a0 \n",
	}
	for _, in := range inputs {
		once := NormalizeLines(in)
		twice := NormalizeLines(strings.Join(once, "\n"))
		assert.Equal(t, once, twice, "规范化应当幂等: %q", in)
		for _, l := range once {
			assert.NotEmpty(t, l)
			assert.NotContains(t, l, "  ")
			assert.NotContains(t, l, "\u00a0")
			assert.Equal(t, strings.TrimRight(l, " \t\r"), l)
		}
	}

	assert.Equal(t, []string{" Jane Doe", "Experience:", " Built things"}, NormalizeLines(inputs[0]))
}

func TestRemoveRepeatedHeaders(t *testing.T) {
	pages := make([][]string, 5)
	for i := range pages {
		pages[i] = []string{"Jane Doe Resume", "content line", "more content"}
	}

	cleaned := RemoveRepeatedHeadersFooters(pages)
	require.Len(t, cleaned, 5)
	for i, p := range cleaned {
		assert.NotContains(t, p, "Jane Doe Resume", "第 %d 页的页眉应被删除", i+1)
	}
	assert.Equal(t, "Jane Doe Resume", pages[0][0], "输入不应被修改")
}

func TestRemoveRepeatedFooters(t *testing.T) {
	pages := [][]string{
		{"Experience", "Page footer"},
		{"Engineer at Acme", "Page footer"},
		{"Skills", "Go", "Page footer"},
	}
	cleaned := RemoveRepeatedHeadersFooters(pages)
	assert.Equal(t, [][]string{{"Experience"}, {"Engineer at Acme"}, {"Skills", "Go"}}, cleaned)
}

func TestRemoveRepeatedHeadersBelowThreshold(t *testing.T) {
	// 5 页时阈值为 max(2, 3) = 3
	pages := [][]string{
		{"Header", "a"},
		{"Header", "b"},
		{"Other", "c"},
		{"Other2", "d"},
		{"Other3", "e"},
	}
	assert.Equal(t, pages, RemoveRepeatedHeadersFooters(pages))
}

func TestRemoveRepeatedHeadersSinglePage(t *testing.T) {
	pages := [][]string{{"Jane Doe Resume", "Jane Doe Resume", "Jane Doe Resume"}}
	assert.Equal(t, pages, RemoveRepeatedHeadersFooters(pages), "单页文档不做任何删除")
}

func TestRemoveRepeatedHeadersComparesPrefix(t *testing.T) {
	long := strings.Repeat("x", 120)
	pages := [][]string{
		{long + " page 1", "a"},
		{long + " page 2", "b"},
	}
	cleaned := RemoveRepeatedHeadersFooters(pages)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, cleaned, "只比较前 120 个字符")
}

func TestScannedThreshold(t *testing.T) {
	assert.Equal(t, 800, ScannedThreshold(0))
	assert.Equal(t, 800, ScannedThreshold(100000))
	assert.Equal(t, 2000, ScannedThreshold(1000000))

	assert.True(t, IsLikelyScanned(150, 100000))
	assert.False(t, IsLikelyScanned(900, 100000))
	assert.True(t, IsLikelyScanned(1999, 1000000))
}

// textPage 生成一页共 n 个字符的文本
func textPage(n int) [][]string {
	return [][]string{{strings.Repeat("a", n)}}
}

func TestStructurePagesScannedBoundary(t *testing.T) {
	scanned := StructurePages(textPage(150), 100000)
	assert.True(t, scanned.Scanned)
	assert.Contains(t, scanned.Notes, "bytes=100000, text=150")
	assert.Contains(t, scanned.Notes, "No OCR attempted")

	notScanned := StructurePages(textPage(900), 100000)
	assert.False(t, notScanned.Scanned)
	assert.Len(t, []rune(notScanned.RawText), 900)
}

func assertTerminal(t *testing.T, r *types.ParsedResume) {
	t.Helper()
	assert.True(t, r.Scanned)
	assert.NotEmpty(t, r.Notes)
	for _, f := range types.CanonicalFields {
		assert.Equal(t, []string{}, r.FieldValues(f), "扫描件的 %s 应为空", f)
	}
	assert.Empty(t, r.OtherSections)
	assert.Empty(t, r.Confidence)
}

func TestScannedResultIsTerminal(t *testing.T) {
	r := StructurePages([][]string{{"Experience", "Engineer — Acme Jan 2019 – Dec 2020", "Skills", "Go"}}, 100000)
	assertTerminal(t, r)
	assert.False(t, r.ExtractionFailed, "文本过少不算提取失败")

	failed := ExtractionFailedResult(errors.New("boom"))
	assertTerminal(t, failed)
	assert.True(t, failed.ExtractionFailed)
	assert.Equal(t, "Failed to parse PDF: boom", failed.Notes)
	assert.Empty(t, failed.RawText)

	b, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"experience":[]`)
	assert.NotContains(t, string(b), "confidence")
	assert.NotContains(t, string(b), "ExtractionFailed")
}

func TestSectionRoundTrip(t *testing.T) {
	r := StructureLines([]string{"Experience", "Built X at Acme Jan 2020 – Mar 2021", "Skills", "Python, Go, SQL"})

	assert.Equal(t, []string{"Built X at Acme Jan 2020 – Mar 2021"}, r.Experience)
	assert.Equal(t, []string{"Python", "Go", "SQL"}, r.Skills)
	assert.Equal(t, types.ConfidenceDirect, r.Confidence[types.FieldExperience])
	assert.Equal(t, types.ConfidenceDirect, r.Confidence[types.FieldSkills])
	assert.Equal(t, types.ConfidenceHeuristic, r.Confidence[types.FieldEducation])
	assert.Len(t, r.Confidence, 5)
	assert.False(t, r.Scanned)
	assert.Empty(t, r.Notes)
}

func TestNoHeadingsIsHeuristic(t *testing.T) {
	r := StructureLines([]string{"Jane Doe", "Loves hiking and chess"})

	assert.Len(t, r.Confidence, 5)
	for _, f := range types.CanonicalFields {
		assert.Equal(t, types.ConfidenceHeuristic, r.Confidence[f])
	}
}

func TestSegmentHeadings(t *testing.T) {
	lines := []string{
		"Jane Doe",
		"jane@example.com",
		"Summary:",
		"Backend engineer",
		"WORK EXPERIENCE -",
		"Engineer at Acme",
		"Experience",
		"Consultant at Beta",
		"Internships",
		"Certifications",
		"AWS SAA",
	}
	s := Segment(lines)

	assert.Equal(t, []string{"summary", "work experience", "experience", "internships", "certifications"}, s.Keys())
	assert.Equal(t, []string{"Backend engineer"}, s.Lines("summary"))
	// 同义章节按 experience, work experience, professional experience 的顺序合并
	assert.Equal(t, []string{"Consultant at Beta", "Engineer at Acme"}, s.FieldLines(types.FieldExperience))
	assert.True(t, s.Has("internships"), "空章节也应保留 key")
	assert.Empty(t, s.Lines("internships"))
	assert.Equal(t, types.ConfidenceDirect, s.Confidence(types.FieldInternships))
	assert.Equal(t, map[string][]string{
		"summary":        {"Backend engineer"},
		"certifications": {"AWS SAA"},
	}, s.Other())
}

func TestHeadingKey(t *testing.T) {
	cases := map[string]string{
		"Experience":                 "experience",
		"  Technical Skills: Go, SQL": "technical skills",
		"Internships":                "internships",
		"Internship":                 "internship",
		"Projects -":                 "projects",
		"Education & Certifications": "education",
		"ABOUT ME":                   "about me",
	}
	for line, want := range cases {
		got, ok := HeadingKey(line)
		assert.True(t, ok, line)
		assert.Equal(t, want, got, line)
	}

	for _, line := range []string{"Experienced engineer", "My projects", "Skillset"} {
		_, ok := HeadingKey(line)
		assert.False(t, ok, line)
	}
}

func TestGroupEntries(t *testing.T) {
	entries := GroupEntries([]string{
		"Engineer — Acme Jan 2019 – Dec 2020",
		"Built the thing",
		"Manager — Beta Jan 2021 – present",
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "Engineer — Acme Jan 2019 – Dec 2020 • Built the thing", entries[0])
	assert.Equal(t, "Manager — Beta Jan 2021 – present", entries[1])
}

func TestGroupEntriesStripsBullets(t *testing.T) {
	entries := GroupEntries([]string{
		"• Senior Dev - Gamma Sept. 2018 - Current",
		"- Shipped payments",
		"1. Mentored juniors",
		"-",
		"Backend Engineer – Delta",
		"* Scaled APIs",
	})

	assert.Equal(t, []string{
		"Senior Dev - Gamma Sept. 2018 - Current • Shipped payments • Mentored juniors",
		"Backend Engineer – Delta • Scaled APIs",
	}, entries)
}

func TestGroupEntriesWithoutBoundaries(t *testing.T) {
	assert.Equal(t, []string{"a • b"}, GroupEntries([]string{"a", "b"}))
	assert.Empty(t, GroupEntries(nil))
}

func TestExtractProjects(t *testing.T) {
	projects := ExtractProjects([]string{
		"Project: Resume Parser",
		"Built a CLI in Go",
		"Chat App:",
		"uses websockets",
		"Built a CLI in Go",
	}, nil)

	assert.Equal(t, []string{"Resume Parser", "Built a CLI in Go", "Chat App:"}, projects)
}

func TestExtractProjectsScansAllSections(t *testing.T) {
	all := []string{"Engineer at Acme", "Developed a billing system", "led a team of 4"}
	projects := ExtractProjects([]string{"nothing relevant"}, all)
	assert.Equal(t, []string{"Developed a billing system", "led a team of 4"}, projects)

	var many []string
	for i := 0; i < 80; i++ {
		many = append(many, "Built service "+strings.Repeat("x", i))
	}
	assert.Len(t, ExtractProjects(nil, many), 50)
}

// 技能不去重, 保留原始出现次数
func TestExtractSkillsKeepsDuplicates(t *testing.T) {
	skills := ExtractSkills([]string{"Go, Python; SQL", "Go | Docker • Kubernetes", " , ;"})
	assert.Equal(t, []string{"Go", "Python", "SQL", "Go", "Docker", "Kubernetes"}, skills)
}

func TestFallbackActivation(t *testing.T) {
	r := StructureLines([]string{
		"Jane Doe",
		"Software intern at Acme in 2022. Developed a payment service",
		"Bachelor of Science, State University",
		"Comfortable with Python and Docker",
	})

	assert.NotEmpty(t, r.Internships)
	assert.Equal(t, "Software intern at Acme in 2022", r.Internships[0])
	assert.Contains(t, r.Projects, "Developed a payment service")
	assert.Contains(t, r.Education, "Bachelor of Science, State University")
	assert.Contains(t, r.Skills, "Comfortable with Python and Docker")
	assert.Contains(t, r.Notes, "heuristically")
	assert.Equal(t, types.ConfidenceHeuristic, r.Confidence[types.FieldInternships])
}

func TestFallbackOverEmptyHeadingIsHeuristic(t *testing.T) {
	r := StructureLines([]string{"Jane", "Experience", "Summary", "Software engineer who led a team"})

	assert.Equal(t, []string{"Software engineer who led a team"}, r.Experience)
	assert.Equal(t, types.ConfidenceHeuristic, r.Confidence[types.FieldExperience], "兜底填充的字段不应标记为 direct")
	assert.Contains(t, r.Notes, "heuristically")
}

func TestFallbackCaps(t *testing.T) {
	var text []string
	for i := 0; i < 30; i++ {
		text = append(text, "python intern developer university project")
	}
	fb := KeywordFallback(strings.Join(text, "\n"))
	assert.Len(t, fb[types.FieldInternships], 8)
	assert.Len(t, fb[types.FieldExperience], 8)
	assert.Len(t, fb[types.FieldProjects], 8)
	assert.Len(t, fb[types.FieldEducation], 8)
	assert.Len(t, fb[types.FieldSkills], 20)
}

func TestFallbackNotUsedWhenHeadingHasContent(t *testing.T) {
	r := StructureLines([]string{"Education", "MIT", "Intern at Acme"})
	assert.Equal(t, []string{"MIT", "Intern at Acme"}, r.Education)
	assert.Empty(t, r.Internships)
	assert.NotContains(t, r.Notes, "heuristically")
}

func TestStructurePagesEndToEnd(t *testing.T) {
	header := "Jane Doe · jane@example.com"
	footer := "Confidential"
	summary := strings.TrimSpace(strings.Repeat("Reliable distributed systems. ", 30))
	pages := [][]string{
		{header, "Summary", summary, "Experience", "• Engineer — Acme Jan 2019 – Dec 2020", "- Built the  billing system", footer},
		{header, "Manager — Beta Jan 2021 – present", "Projects", "Project: Resume Parser", footer},
		{header, "Education", "BSc Computer Science", "Technical Skills", "Go, SQL, Go", "Languages", "English", footer},
	}

	r := StructurePages(pages, 1000)
	require.False(t, r.Scanned)

	assert.NotContains(t, r.RawText, header)
	assert.NotContains(t, r.RawText, footer)
	assert.Equal(t, []string{
		"Engineer — Acme Jan 2019 – Dec 2020 • Built the billing system",
		"Manager — Beta Jan 2021 – present",
	}, r.Experience)
	assert.Equal(t, []string{"Resume Parser"}, r.Projects)
	assert.Equal(t, []string{"BSc Computer Science"}, r.Education)
	assert.Equal(t, []string{"Go", "SQL", "Go"}, r.Skills)
	assert.Equal(t, []string{}, r.Internships)
	assert.Equal(t, map[string][]string{
		"summary":   {summary},
		"languages": {"English"},
	}, r.OtherSections)
	assert.Equal(t, types.ConfidenceDirect, r.Confidence[types.FieldProjects])
	assert.Equal(t, types.ConfidenceHeuristic, r.Confidence[types.FieldInternships])
}

type fakeExtractor struct {
	pages [][]string
	err   error
}

func (f *fakeExtractor) ExtractPages(context.Context, []byte) ([][]string, error) {
	return f.pages, f.err
}

func TestStructurerParseExtractionError(t *testing.T) {
	s := NewStructurer(&fakeExtractor{err: errors.New("xref table broken")})
	r := s.Parse(context.Background(), []byte("%PDF-1.4"))

	assertTerminal(t, r)
	assert.Equal(t, "Failed to parse PDF: xref table broken", r.Notes)
}

func TestStructurerParseConcurrent(t *testing.T) {
	lines := []string{"Experience", "Engineer — Acme Jan 2019 – Dec 2020", "Skills", "Go, SQL"}
	lines = append(lines, strings.Split(strings.Repeat("Reliable services at scale\n", 40), "\n")...)
	s := NewStructurer(&fakeExtractor{pages: [][]string{lines}})

	var wg sync.WaitGroup
	results := make([]*types.ParsedResume, 16)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Parse(context.Background(), make([]byte, 1000))
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
		assert.False(t, r.Scanned)
	}
}

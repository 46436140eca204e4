package types

import "fmt"

// Field 结构化简历的五个规范字段
type Field string

const (
	FieldExperience  Field = "experience"
	FieldInternships Field = "internships"
	FieldProjects    Field = "projects"
	FieldEducation   Field = "education"
	FieldSkills      Field = "skills"
)

// CanonicalFields 按输出顺序排列的规范字段
var CanonicalFields = [...]Field{FieldExperience, FieldInternships, FieldProjects, FieldEducation, FieldSkills}

// Confidence 字段值的来源: 直接来自标题章节, 或是启发式推断
type Confidence int

const (
	ConfidenceHeuristic Confidence = iota
	ConfidenceDirect
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceDirect:
		return "direct"
	case ConfidenceHeuristic:
		return "heuristic"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// MarshalText 序列化为 "direct" / "heuristic"
func (c Confidence) MarshalText() ([]byte, error) {
	switch c {
	case ConfidenceDirect, ConfidenceHeuristic:
		return []byte(c.String()), nil
	}
	return nil, fmt.Errorf("invalid confidence value %d", int(c))
}

// UnmarshalText 从缓存中读回时使用
func (c *Confidence) UnmarshalText(b []byte) error {
	switch string(b) {
	case "direct":
		*c = ConfidenceDirect
	case "heuristic":
		*c = ConfidenceHeuristic
	default:
		return fmt.Errorf("unknown confidence %q", string(b))
	}
	return nil
}

// ParsedResume 简历结构化结果
//
// Scanned 为 true 时, 五个规范字段全部为空, Notes 给出原因。
type ParsedResume struct {
	RawText       string               `json:"rawText"`
	Experience    []string             `json:"experience"`
	Internships   []string             `json:"internships"`
	Projects      []string             `json:"projects"`
	Education     []string             `json:"education"`
	Skills        []string             `json:"skills"`
	OtherSections map[string][]string  `json:"otherSections,omitempty"`
	Scanned       bool                 `json:"scanned"`
	Notes         string               `json:"notes,omitempty"`
	Confidence    map[Field]Confidence `json:"confidence,omitempty"`

	// ExtractionFailed 文本提取本身出错(而非文本过少), 结果不应被缓存复用
	ExtractionFailed bool `json:"-"`
}

// FieldValues 返回指定规范字段的值
func (r *ParsedResume) FieldValues(f Field) []string {
	switch f {
	case FieldExperience:
		return r.Experience
	case FieldInternships:
		return r.Internships
	case FieldProjects:
		return r.Projects
	case FieldEducation:
		return r.Education
	case FieldSkills:
		return r.Skills
	}
	return nil
}

// AddNote 追加一条说明, 以空格分隔
func (r *ParsedResume) AddNote(note string) {
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes = r.Notes + " " + note
}

// AllFieldsEmpty 五个规范字段是否全部为空
func (r *ParsedResume) AllFieldsEmpty() bool {
	for _, f := range CanonicalFields {
		if len(r.FieldValues(f)) > 0 {
			return false
		}
	}
	return true
}

// EnsureSlices 把 nil 切片替换为空切片, 保证 JSON 输出为 [] 而不是 null
func (r *ParsedResume) EnsureSlices() {
	for _, p := range []*[]string{&r.Experience, &r.Internships, &r.Projects, &r.Education, &r.Skills} {
		if *p == nil {
			*p = []string{}
		}
	}
}

// ResumeSections 面试上下文中使用的简历章节(已按上限截断)
type ResumeSections struct {
	Experience  []string `json:"experience"`
	Projects    []string `json:"projects"`
	Skills      []string `json:"skills"`
	Education   []string `json:"education"`
	Internships []string `json:"internships"`
}

// InterviewRequest 面试上下文/问题生成请求
type InterviewRequest struct {
	JobRole           string        `json:"jobRole"`
	JobDescription    string        `json:"jobDescription"`
	YearsOfExperience *float64      `json:"yearsOfExperience"`
	Resume            *ParsedResume `json:"resume,omitempty"`
}

// InterviewContext 发送给大模型的上下文
type InterviewContext struct {
	JobRole           string         `json:"jobRole"`
	TechStack         []string       `json:"techStack"`
	YearsOfExperience float64        `json:"yearsOfExperience"`
	Resume            ResumeSections `json:"resume"`
	ResumeSummary     string         `json:"resumeSummary"`
}

// InterviewQuestions 问题生成结果
type InterviewQuestions struct {
	Status                string           `json:"status"`
	Questions             []string         `json:"questions"`
	Top15Questions        []string         `json:"Top15Questions"`
	TechStack             []string         `json:"techStack"`
	UsedFallbackQuestions bool             `json:"usedFallbackQuestions"`
	Context               InterviewContext `json:"context"`
	ContextTruncated      bool             `json:"contextTruncated"`
}

// AnswerRequest 单题作答评分请求
type AnswerRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnswerAnalysis 单题评分结果, Score 取值 0-100
type AnswerAnalysis struct {
	Score                  int      `json:"score"`
	TechnicalFeedback      string   `json:"technicalFeedback"`
	CommunicationFeedback  string   `json:"communicationFeedback"`
	ImprovementSuggestions []string `json:"improvementSuggestions"`
	UsedFallback           bool     `json:"usedFallback"`
}

// InterviewSummaryRequest 汇总一场面试的逐题评分
type InterviewSummaryRequest struct {
	Analyses []AnswerAnalysis `json:"analyses"`
}

// InterviewSummary 面试总分和结果
type InterviewSummary struct {
	OverallScore int    `json:"overallScore"`
	Answered     int    `json:"answered"`
	Result       string `json:"result"`
}

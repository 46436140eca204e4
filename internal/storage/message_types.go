package storage

import "time"

// ResumeParsedEvent 简历结构化完成事件, 由 outbox 中继投递
type ResumeParsedEvent struct {
	SubmissionUUID    string    `json:"submission_uuid"`
	FileMD5           string    `json:"file_md5"`
	OriginalFilename  string    `json:"original_filename"`
	OriginalObjectKey string    `json:"original_object_key,omitempty"`
	Scanned           bool      `json:"scanned"`
	Notes             string    `json:"notes,omitempty"`
	ExperienceCount   int       `json:"experience_count"`
	ProjectCount      int       `json:"project_count"`
	SkillCount        int       `json:"skill_count"`
	ParserVersion     string    `json:"parser_version"`
	ParsedAt          time.Time `json:"parsed_at"`
}

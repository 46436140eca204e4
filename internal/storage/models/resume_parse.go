package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"resume-structurer/internal/types"
	"resume-structurer/pkg/utils"
)

// ResumeParse 一次提交的结构化结果
type ResumeParse struct {
	SubmissionUUID    string         `gorm:"type:char(36);primaryKey" json:"submission_uuid"`
	FileMD5           string         `gorm:"type:char(32);index" json:"file_md5"`
	OriginalFilename  string         `gorm:"type:varchar(255)" json:"original_filename"`
	OriginalObjectKey string         `gorm:"type:varchar(255)" json:"original_object_key,omitempty"`
	FileSize          int64          `json:"file_size"`
	Scanned           bool           `gorm:"index" json:"scanned"`
	Notes             string         `gorm:"type:text" json:"notes,omitempty"`
	Confidence        datatypes.JSON `json:"confidence,omitempty"`
	Skills            datatypes.JSON `json:"skills"`
	Parsed            datatypes.JSON `gorm:"not null" json:"parsed"`
	ParserVersion     string         `gorm:"type:varchar(32)" json:"parser_version"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName 表名
func (ResumeParse) TableName() string {
	return "resume_parses"
}

// NewResumeParse 从结构化结果构建数据库记录
func NewResumeParse(submissionUUID, fileMD5, filename, objectKey string, size int64, parsed *types.ParsedResume, parserVersion string) (*ResumeParse, error) {
	data, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("序列化解析结果失败: %w", err)
	}
	rec := &ResumeParse{
		SubmissionUUID:    submissionUUID,
		FileMD5:           fileMD5,
		OriginalFilename:  filename,
		OriginalObjectKey: objectKey,
		FileSize:          size,
		Scanned:           parsed.Scanned,
		Notes:             parsed.Notes,
		Skills:            utils.ConvertArrayToJSON(parsed.Skills),
		Parsed:            datatypes.JSON(data),
		ParserVersion:     parserVersion,
	}
	if len(parsed.Confidence) > 0 {
		rec.Confidence = utils.ConvertToJSON(parsed.Confidence)
	}
	return rec, nil
}

// ToParsedResume 反序列化结构化结果
func (r *ResumeParse) ToParsedResume() (*types.ParsedResume, error) {
	var parsed types.ParsedResume
	if err := json.Unmarshal(r.Parsed, &parsed); err != nil {
		return nil, fmt.Errorf("反序列化解析结果失败: %w", err)
	}
	return &parsed, nil
}

package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrParseTimeout         = errors.New("简历解析超时")
	ErrExtractAborted       = errors.New("简历解析被取消")
	ErrStoreOriginalFailed  = errors.New("上传原始简历失败")
	ErrCacheFailed          = errors.New("读写解析缓存失败")
	ErrDatabaseFailed       = errors.New("数据库操作失败")
	ErrPublishMessageFailed = errors.New("构建解析事件失败")

	ErrSubmissionNotFound   = errors.New("提交记录不存在")
	ErrRepositoryNotInit    = errors.New("解析记录存储未初始化")
	ErrInvalidInterviewArgs = errors.New("invalid interview request")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	SubmissionUUID string
	Op             string
	BaseErr        error
	Detail         string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.SubmissionUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.SubmissionUUID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewTimeoutError(uuid, detail string) error {
	return &ResumeProcessError{
		SubmissionUUID: uuid,
		Op:             "extract",
		BaseErr:        ErrParseTimeout,
		Detail:         detail,
	}
}

func NewExtractError(uuid, detail string) error {
	return &ResumeProcessError{
		SubmissionUUID: uuid,
		Op:             "extract",
		BaseErr:        ErrExtractAborted,
		Detail:         detail,
	}
}

func NewStoreError(uuid, detail string) error {
	return &ResumeProcessError{
		SubmissionUUID: uuid,
		Op:             "store",
		BaseErr:        ErrStoreOriginalFailed,
		Detail:         detail,
	}
}

func NewCacheError(uuid, detail string) error {
	return &ResumeProcessError{
		SubmissionUUID: uuid,
		Op:             "cache",
		BaseErr:        ErrCacheFailed,
		Detail:         detail,
	}
}

func NewPublishError(uuid, detail string) error {
	return &ResumeProcessError{
		SubmissionUUID: uuid,
		Op:             "publish",
		BaseErr:        ErrPublishMessageFailed,
		Detail:         detail,
	}
}

func NewDatabaseError(uuid, detail string) error {
	return &ResumeProcessError{
		SubmissionUUID: uuid,
		Op:             "database",
		BaseErr:        ErrDatabaseFailed,
		Detail:         detail,
	}
}

// invalidArgs 请求参数校验失败, 消息直接返回给调用方
func invalidArgs(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInterviewArgs, msg)
}

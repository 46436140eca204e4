package constants

// Redis Key 统一命名: app:{module}:{entity}:{unique_id}
const (
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityParsed 解析结果实体
	EntityParsed = "parsed"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToUUID MD5到UUID的映射实体
	EntityMD5ToUUID = "md5_to_uuid"

	// KeyParsedResume 按文件 MD5 缓存的结构化结果 (STRING, JSON)
	// 格式: app:resume:parsed:{md5}
	KeyParsedResume = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityParsed + ":%s"

	// KeyFileMD5Set 已持久化文件的 MD5 集合 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileMD5ToSubmissionUUID MD5到SubmissionUUID的映射 (STRING)
	// 格式: app:file:md5_to_uuid:{md5}
	KeyFileMD5ToSubmissionUUID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToUUID + ":%s"
)

package constants

// 数据来源标识
const (
	SourceGithub   = "GitHub"
	SourceLinkedin = "LinkedIn"
)

// 上传相关常量
const (
	// DefaultMaxUploadBytes 上传文件默认大小上限 (10 MiB)
	DefaultMaxUploadBytes = 10 << 20

	// PDFContentType 唯一允许的上传内容类型
	PDFContentType = "application/pdf"

	// UploadFormField multipart表单中的文件字段名
	UploadFormField = "pdf"
)

// MQ事件路由
const (
	ProfileEventsExchange      = "profile.events.exchange"
	ProfileEventsQueue         = "profile.events.queue"
	ProfileUpdatedRoutingKey   = "profile.updated"
	DocumentIngestedRoutingKey = "document.ingested"
)

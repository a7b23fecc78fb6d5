package storage

import "time"

// ProfileUpdatedMessage 档案创建或更新后发布的事件体
type ProfileUpdatedMessage struct {
	UserID    string    `json:"userId"`
	ProfileID string    `json:"profileId"`
	Source    string    `json:"source"`  // GitHub 或 LinkedIn
	Created   bool      `json:"created"` // true 表示本次为新建
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentIngestedMessage PDF解析完成并归档后发布的事件体
type DocumentIngestedMessage struct {
	UploadID        string    `json:"uploadId"`
	ObjectLocation  string    `json:"objectLocation"` // bucket/objectName
	PageCount       int       `json:"pageCount"`
	FileSizeBytes   int64     `json:"fileSizeBytes"`
	TextLengthRunes int       `json:"textLengthRunes"`
	IngestedAt      time.Time `json:"ingestedAt"`
}

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"social-connect-go/internal/types"

	"gorm.io/datatypes"
)

// ConnectedProfile 关联社交档案主表
// 每个用户至多一条记录，唯一性由 user_id 上的唯一索引保证
type ConnectedProfile struct {
	ProfileID    string         `gorm:"type:char(36);primaryKey"`
	UserID       string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_cp_user_id_unique"`
	GithubData   datatypes.JSON `gorm:"type:json"`
	LinkedinData datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ConnectedProfile) TableName() string {
	return "connected_profiles"
}

// HasGithubData 判断GitHub子记录是否已写入
func (p *ConnectedProfile) HasGithubData() bool {
	return len(p.GithubData) > 0 && string(p.GithubData) != "null"
}

// HasLinkedinData 判断LinkedIn子记录是否已写入
func (p *ConnectedProfile) HasLinkedinData() bool {
	return len(p.LinkedinData) > 0 && string(p.LinkedinData) != "null"
}

// DecodeGithubData 反序列化GitHub子记录，未写入时返回nil
func (p *ConnectedProfile) DecodeGithubData() (*types.GithubData, error) {
	if !p.HasGithubData() {
		return nil, nil
	}
	var data types.GithubData
	if err := json.Unmarshal(p.GithubData, &data); err != nil {
		return nil, fmt.Errorf("解析github_data列失败: %w", err)
	}
	return &data, nil
}

// DecodeLinkedinData 反序列化LinkedIn子记录，未写入时返回nil
func (p *ConnectedProfile) DecodeLinkedinData() (*types.LinkedinData, error) {
	if !p.HasLinkedinData() {
		return nil, nil
	}
	var data types.LinkedinData
	if err := json.Unmarshal(p.LinkedinData, &data); err != nil {
		return nil, fmt.Errorf("解析linkedin_data列失败: %w", err)
	}
	return &data, nil
}

// EncodeJSON 将子记录序列化为JSON列值
func EncodeJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

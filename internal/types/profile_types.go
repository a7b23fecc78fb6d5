package types

import "time"

// RepoSummary GitHub仓库摘要
type RepoSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Stars       int    `json:"stars,omitempty"`
	URL         string `json:"url,omitempty"`
}

// GithubData GitHub侧的档案子记录，整体替换，不做字段级合并
type GithubData struct {
	Username       string        `json:"username"`
	AvatarURL      string        `json:"avatar_url"`
	Bio            string        `json:"bio"`
	FollowerCount  int           `json:"follower_count"`
	FollowingCount int           `json:"following_count"`
	Repositories   []RepoSummary `json:"repositories"`
}

// ExperienceEntry 工作经历条目
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

// EducationEntry 教育经历条目
type EducationEntry struct {
	School   string `json:"school"`
	Degree   string `json:"degree,omitempty"`
	Field    string `json:"field,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// LinkedinData LinkedIn侧的档案子记录（来源于PDF解析结果）
type LinkedinData struct {
	FullName       string            `json:"full_name"`
	Headline       string            `json:"headline"`
	Summary        string            `json:"summary"`
	Experience     []ExperienceEntry `json:"experience"`
	Education      []EducationEntry  `json:"education"`
	Skills         []string          `json:"skills"`
	Certifications []string          `json:"certifications"`
}

// GithubProfilePayload GitHub模式的入库请求
// 指针字段用于区分"字段缺失"与"显式空值"，缺失字段在更新时保持原值
type GithubProfilePayload struct {
	UserID    string         `json:"userId"`
	Username  *string        `json:"username,omitempty"`
	Avatar    *string        `json:"avatar,omitempty"`
	Bio       *string        `json:"bio,omitempty"`
	Followers *int           `json:"followers,omitempty"`
	Following *int           `json:"following,omitempty"`
	Repos     *[]RepoSummary `json:"repos,omitempty"`
}

// LinkedinProfilePayload LinkedIn模式的入库请求
type LinkedinProfilePayload struct {
	UserID         string             `json:"userId"`
	FullName       *string            `json:"fullName,omitempty"`
	Headline       *string            `json:"headline,omitempty"`
	Summary        *string            `json:"summary,omitempty"`
	Experience     *[]ExperienceEntry `json:"experience,omitempty"`
	Education      *[]EducationEntry  `json:"education,omitempty"`
	Skills         *[]string          `json:"skills,omitempty"`
	Certifications *[]string          `json:"certifications,omitempty"`
}

// PersonalInfo 归一化视图中的个人信息部分
// 联系方式字段当前数据源不提供，保留占位以便前端简历模板直接填充
type PersonalInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Website  string `json:"website"`
}

// NormalizedProfile 对外暴露的归一化档案视图
type NormalizedProfile struct {
	UserID         string            `json:"userId"`
	PersonalInfo   PersonalInfo      `json:"personalInfo"`
	Summary        string            `json:"summary"`
	Experience     []ExperienceEntry `json:"experience"`
	Education      []EducationEntry  `json:"education"`
	Skills         []string          `json:"skills"`
	Certifications []string          `json:"certifications"`
	Source         string            `json:"source"`
	Github         *GithubData       `json:"github,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// PdfExtractionResult PDF提取结果，仅在请求生命周期内存在，不落库
type PdfExtractionResult struct {
	Text                string                 `json:"text"`
	PageCount           int                    `json:"page_count"`
	Metadata            map[string]interface{} `json:"metadata"`
	SourceFileSizeBytes int64                  `json:"source_file_size_bytes"`
}

// ProfilePatch 存储层的浅合并补丁：子记录提供即整体替换，缺失即保持不变
type ProfilePatch struct {
	GithubData   *GithubData
	LinkedinData *LinkedinData
}

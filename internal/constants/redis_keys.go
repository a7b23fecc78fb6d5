package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ProfileModulePrefix 档案模块
	ProfileModulePrefix = "profile"

	// EntityView 归一化视图实体
	EntityView = "view"

	// KeyProfileView 归一化档案视图缓存 (STRING, JSON序列化)
	// 格式: app:profile:view:{userID}
	KeyProfileView = AppPrefix + ":" + ProfileModulePrefix + ":" + EntityView + ":%s"
)

package public

import "github.com/settle-next/internal/provider"

// Handler 对外/回调接口处理器入口
// 说明：该处理器仅用于合作方 API 与打款网关回调。
type Handler struct {
	*provider.Container
}

// New 创建对外处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

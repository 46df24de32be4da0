package admin

import (
	"github.com/settle-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

func getContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		respondError(c, response.CodeUnauthorized, "未登录或登录已过期", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			respondError(c, response.CodeBadRequest, "上下文参数无效", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			respondError(c, response.CodeBadRequest, "上下文参数无效", nil)
			return 0, false
		}
		return uint(v), true
	default:
		respondError(c, response.CodeInternal, "上下文参数类型错误", nil)
		return 0, false
	}
}

func getAdminID(c *gin.Context) (uint, bool) {
	return getContextUint(c, "admin_id")
}

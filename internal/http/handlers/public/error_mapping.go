package public

import (
	"errors"

	"github.com/settle-next/internal/http/response"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var orderEventErrorRules = []mappedHandlerError{
	{target: service.ErrPartyTypeInvalid, code: response.CodeBadRequest, msg: "参与方类型无效"},
	{target: service.ErrPolicyInvalid, code: response.CodeBadRequest, msg: "入账参数无效"},
	{target: service.ErrPolicyNotFound, code: response.CodeBadRequest, msg: "佣金策略无效"},
}

func respondOrderEventError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderEventErrorRules, response.CodeInternal, "入账失败")
}

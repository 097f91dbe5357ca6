package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码
const (
	CodeInvalidAmount       = 1001
	CodeAccountNotFound     = 1002
	CodeInsufficientFunds   = 1003
	CodeTransientFailure    = 1004 // 可重试
	CodeTransactionNotFound = 1005
	CodeUsernameTaken       = 1006
	CodeInvalidUsername     = 1007
)

var messages = map[int]string{
	CodeParamError:          "参数错误",
	CodeUnauthorized:        "未登录",
	CodeNotFound:            "资源不存在",
	CodeServerError:         "服务器内部错误",
	CodeInvalidAmount:       "金额非法",
	CodeAccountNotFound:     "账户不存在",
	CodeInsufficientFunds:   "余额不足",
	CodeTransientFailure:    "系统繁忙，请重试",
	CodeTransactionNotFound: "流水不存在",
	CodeUsernameTaken:       "用户名已被占用",
	CodeInvalidUsername:     "用户名格式错误",
}

// Response 统一响应结构，HTTP 状态码固定为 200，结果看 code
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// Message 错误码对应的默认提示
func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[CodeServerError]
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = Message(code)
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// Fail 使用默认提示返回错误
func Fail(c *gin.Context, code int) {
	Error(c, code, "")
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// Unauthorized 中断后续处理
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = Message(CodeUnauthorized)
	}
	c.AbortWithStatusJSON(http.StatusOK, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

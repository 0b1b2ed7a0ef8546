package validator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Init 初始化 `validate` tag 校验器，用于节点响应的 schema 校验。
// Gin 的 binding 使用独立的 `binding` tag，错误信息同样经过 GetErrorMsg 翻译。
func Init() {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
}

// Struct 校验结构体 tag，返回可读的错误描述
func Struct(s any) error {
	Init()
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%s", GetErrorMsg(err))
	}
	return nil
}

// Var 校验单个值
func Var(field any, tag string) error {
	Init()
	if err := validate.Var(field, tag); err != nil {
		return fmt.Errorf("%s", GetErrorMsg(err))
	}
	return nil
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Namespace()
			if field == "" {
				field = "value"
			}
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
			case "hexadecimal":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be hex", field))
			case "base64":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be base64", field))
			case "len":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must have length %s", field, param))
			case "min", "gte":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s", field, param))
			case "max", "lte":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s failed %s", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return err.Error()
}

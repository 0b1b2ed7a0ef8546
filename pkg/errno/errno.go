package errno

import (
	"errors"
	"fmt"
	"strings"
)

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Err 是携带上下文的错误: 错误种类 + 记录 ID + RPC 方法 + 上游信息
type Err struct {
	Errno
	RecordID string
	Method   string
	Detail   string
	cause    error
}

// New 基于错误种类创建一个可附加上下文的错误
func New(kind Errno) *Err {
	return &Err{Errno: kind}
}

// Newf 创建错误并附带格式化的详情
func Newf(kind Errno, format string, args ...any) *Err {
	return &Err{Errno: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap 将底层错误包装为指定种类
func Wrap(kind Errno, cause error) *Err {
	e := &Err{Errno: kind, cause: cause}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

func (e *Err) WithRecord(id string) *Err {
	e.RecordID = id
	return e
}

func (e *Err) WithMethod(method string) *Err {
	e.Method = method
	return e
}

func (e *Err) WithDetail(detail string) *Err {
	e.Detail = detail
	return e
}

func (e *Err) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.RecordID != "" {
		fmt.Fprintf(&b, " (record %s)", e.RecordID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, " [%s]", e.Method)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Err) Unwrap() error {
	return e.cause
}

// Is 按错误码匹配，使 errors.Is(err, errno.RecordNotFound) 可用
func (e *Err) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return t.Code == e.Code
	case *Errno:
		return t != nil && t.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var ctxErr *Err
	if errors.As(err, &ctxErr) {
		return ctxErr.Code, ctxErr.Error()
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	}

	var kind Errno
	if errors.As(err, &kind) {
		return kind.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// KindOf 返回错误对应的种类，未知错误归为 InternalServerError
func KindOf(err error) Errno {
	if err == nil {
		return OK
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return InternalServerError
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
)

// Validation Errors (20000+), detected locally before any node call
var (
	InvalidAddress    = Errno{Code: 20101, Message: "Invalid recipient address"}
	InvalidAmount     = Errno{Code: 20102, Message: "Invalid amount"}
	RecordNotFound    = Errno{Code: 20201, Message: "PSBT record not found"}
	InvalidTransition = Errno{Code: 20202, Message: "Invalid PSBT status transition"}
)

// Funds & signing Errors (30000+)
var (
	NoUtxosAvailable  = Errno{Code: 30101, Message: "No UTXOs available in wallet"}
	InsufficientFunds = Errno{Code: 30102, Message: "Insufficient funds"}
	SigningFailed     = Errno{Code: 30201, Message: "Signing failed"}
	IncompleteSigning = Errno{Code: 30202, Message: "Transaction not completely signed"}
	BroadcastRejected = Errno{Code: 30301, Message: "Broadcast rejected"}
)

// Node RPC Errors (40000+)
var (
	RpcTimeout           = Errno{Code: 40101, Message: "Node RPC timeout"}
	RpcConnectionFailure = Errno{Code: 40102, Message: "Node RPC connection failure"}
	RpcError             = Errno{Code: 40103, Message: "Node RPC error"}
	SchemaMismatch       = Errno{Code: 40104, Message: "Node RPC response schema mismatch"}
)

var kinds = []Errno{
	ErrBind,
	InvalidAddress, InvalidAmount, RecordNotFound, InvalidTransition,
	NoUtxosAvailable, InsufficientFunds, SigningFailed, IncompleteSigning, BroadcastRejected,
	RpcTimeout, RpcConnectionFailure, RpcError, SchemaMismatch,
}

package errors

import stderrors "errors"

func (d Definition) Error() string {
	return d.Message
}

// Is 按错误码比较，Message 被覆盖的 Definition 仍能匹配原始定义
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	if !ok {
		return false
	}
	return d.Code == t.Code
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// WithMessage 返回同一错误码、不同提示信息的副本
func (d Definition) WithMessage(message string) Definition {
	return Definition{Code: d.Code, Message: message}
}

// 通用错误。
var (
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	InvalidPayload  = Definition{Code: "INVALID_PAYLOAD", Message: "Invalid payload"}
	InvalidQuery    = Definition{Code: "INVALID_QUERY", Message: "Invalid query"}
	InvalidUserID   = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
	InternalError   = Definition{Code: "INTERNAL_ERROR", Message: "Internal server error"}
)

// 用户（联系人所属者）错误。
var (
	ErrUserNotFound = Definition{Code: "USER_NOT_FOUND", Message: "User not found"}
)

// 联系人模块错误。
var (
	ContactNotFound  = Definition{Code: "CONTACT_NOT_FOUND", Message: "Contact not found or does not belong to the user"}
	ContactConflict  = Definition{Code: "CONTACT_CONFLICT", Message: "Contact conflicts with an existing record"}
	InvalidContactID = Definition{Code: "INVALID_CONTACT_ID", Message: "Invalid contact ID format"}
)

// 基础设施错误，非业务码，直接用 errors.New。
var (
	ErrDatabaseConnectionNil        = stderrors.New("database connection is nil")
	ErrTokenGeneratorNotInitialized = stderrors.New("token generator not initialized")
	ErrBrokerNotInitialized         = stderrors.New("message broker not initialized")
	ErrUnsupportedDatabaseDriver    = stderrors.New("unsupported database driver")
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	Unauthorized.Code:     Unauthorized,
	TooManyRequests.Code:  TooManyRequests,
	InvalidPayload.Code:   InvalidPayload,
	InvalidQuery.Code:     InvalidQuery,
	InvalidUserID.Code:    InvalidUserID,
	InternalError.Code:    InternalError,
	ErrUserNotFound.Code:  ErrUserNotFound,
	ContactNotFound.Code:  ContactNotFound,
	ContactConflict.Code:  ContactConflict,
	InvalidContactID.Code: InvalidContactID,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

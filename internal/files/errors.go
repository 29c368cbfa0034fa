package files

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// ErrNotHandled는 이 모듈이 처리하지 않는 액션 이름일 때 반환됩니다.
// 호출자는 다른 핸들러로 라우팅할 수 있습니다.
var ErrNotHandled = errors.New("files: action not handled")

type Kind string

const (
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindQuota      Kind = "quota"
	KindIO         Kind = "io"
)

// Error는 파일 액션의 실패를 분류합니다. Key는 메시지 카탈로그 키입니다.
type Error struct {
	Kind   Kind
	Key    string
	Fields map[string]any
	Err    error
}

func (e *Error) Error() string {
	msg := Message(language.English, e.Key)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Localized는 tag 언어의 사용자 메시지를 반환합니다. 내부 경로나 원인 에러는 포함하지 않습니다.
func (e *Error) Localized(tag language.Tag) string {
	return Message(tag, e.Key)
}

func (e *Error) with(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func newError(kind Kind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}

func errMissingParameter(name string) *Error {
	return newError(KindValidation, msgMissingParameter, nil).with("parameter", name)
}

func errPermission() *Error {
	return newError(KindPermission, msgPermissionDenied, nil)
}

func errNotFound(cleanPath string) *Error {
	return newError(KindNotFound, msgNotFound, nil).with("path", cleanPath)
}

func errAlreadyExists(cleanPath string) *Error {
	return newError(KindConflict, msgAlreadyExists, nil).with("path", cleanPath)
}

func errProtected(cleanPath string) *Error {
	return newError(KindConflict, msgProtectedItem, nil).with("path", cleanPath)
}

func errIO(err error) *Error {
	return newError(KindIO, msgOperationFailed, err)
}

// asError는 임의의 에러를 *Error로 변환합니다. 분류되지 않은 에러는 io로 취급합니다.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return errIO(err)
}

package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// New 创建一个带堆栈的错误；kv 为附加上下文（成对出现）。
func New(msg string, kv ...any) error {
	return errors.New(toString(msg, kv))
}

// Wrap 附加堆栈（err 为 nil 时返回 nil）。
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// WrapMsg 附加堆栈 + 描述 + 上下文kv。
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		sb.WriteString(", ")
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		}
	}
	return sb.String()
}

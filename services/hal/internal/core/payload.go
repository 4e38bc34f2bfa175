package core

import "rtcsync-go/errcode"

// As[T] asserts a payload to the concrete value type T.
// Pointers to T are dereferenced. A nil payload is the zero value of T.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	switch x := v.(type) {
	case nil:
		return zero, ""
	case T:
		return x, ""
	case *T:
		if x == nil {
			return zero, errcode.InvalidPayload
		}
		return *x, ""
	}
	return zero, errcode.InvalidPayload
}

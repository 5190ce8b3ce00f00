package txmethod

import "fmt"

// Arg returns args[i] as a T. Handlers use it to unpack the arguments
// forwarded by a Method; a missing or mistyped argument yields an
// *InvalidArgumentError.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	name := fmt.Sprintf("args[%d]", i)
	if i < 0 || i >= len(args) {
		return zero, invalidArgument(name, fmt.Sprintf("missing, %d argument(s) given", len(args)), nil)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, invalidArgument(name, fmt.Sprintf("must be %T", zero), args[i])
	}
	return v, nil
}

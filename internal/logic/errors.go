package logic

import "fmt"

// UnsupportedError reports a construct that a rewrite or conversion has no
// rule for. It indicates an upstream producer emitting something this
// package does not model and is never retried.
type UnsupportedError struct {
	Op        string
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported construct %s", e.Op, e.Construct)
}

// Unsupported builds an UnsupportedError for the dynamic type of node.
func Unsupported(op string, node any) error {
	return &UnsupportedError{Op: op, Construct: fmt.Sprintf("%T", node)}
}

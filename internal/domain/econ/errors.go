package econ

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput is wrapped by every InputError.
	ErrInvalidInput = errors.New("econ: invalid input")
	// ErrNonFiniteResult is returned when a formula overflows to Inf or NaN.
	ErrNonFiniteResult = errors.New("econ: non-finite result")
)

// InputError describes a rejected argument.
type InputError struct {
	Op     string
	Arg    string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("econ: %s: %s=%v %s", e.Op, e.Arg, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error { return ErrInvalidInput }

// arg is a named operand checked before a formula runs.
type arg struct {
	name  string
	value float64
}

func a(name string, v float64) arg { return arg{name: name, value: v} }

func finite(op string, args ...arg) error {
	for _, x := range args {
		if math.IsNaN(x.value) || math.IsInf(x.value, 0) {
			return &InputError{Op: op, Arg: x.name, Value: x.value, Reason: "must be finite"}
		}
	}
	return nil
}

func nonNegative(op string, args ...arg) error {
	if err := finite(op, args...); err != nil {
		return err
	}
	for _, x := range args {
		if x.value < 0 {
			return &InputError{Op: op, Arg: x.name, Value: x.value, Reason: "must be >= 0"}
		}
	}
	return nil
}

func positive(op string, args ...arg) error {
	if err := finite(op, args...); err != nil {
		return err
	}
	for _, x := range args {
		if x.value <= 0 {
			return &InputError{Op: op, Arg: x.name, Value: x.value, Reason: "must be > 0"}
		}
	}
	return nil
}

// check runs validators in order and returns the first failure.
func check(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func result(op string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: %w", op, ErrNonFiniteResult)
	}
	return v, nil
}

// Package validators provides small composable checks for the loosely
// typed values that come out of YAML settings files. A settings key is
// valid when at least one of its validators accepts the value.
package validators

import (
	"os"

	"github.com/baca2-project/judgekeeper/internal/memsize"
)

// Validator accepts or rejects a single settings value.
type Validator interface {
	Validate(value any) bool
}

// Func adapts a plain function to the Validator interface.
type Func func(value any) bool

func (f Func) Validate(value any) bool { return f(value) }

// Not inverts a validator.
func Not(v Validator) Validator {
	return Func(func(value any) bool { return !v.Validate(value) })
}

// All passes when every operand passes.
func All(operands ...Validator) Validator {
	return Func(func(value any) bool {
		for _, v := range operands {
			if !v.Validate(value) {
				return false
			}
		}
		return true
	})
}

// Any passes when at least one operand passes.
func Any(operands ...Validator) Validator {
	return Func(func(value any) bool {
		for _, v := range operands {
			if v.Validate(value) {
				return true
			}
		}
		return false
	})
}

// IsNil accepts only a missing value.
var IsNil = Func(func(value any) bool { return value == nil })

// IsAny accepts everything.
var IsAny = Func(func(value any) bool { return true })

// IsString accepts string values.
var IsString = Func(func(value any) bool {
	_, ok := value.(string)
	return ok
})

// IsBool accepts boolean values.
var IsBool = Func(func(value any) bool {
	_, ok := value.(bool)
	return ok
})

// IsInt accepts integer values as yaml decodes them.
var IsInt = Func(func(value any) bool {
	switch value.(type) {
	case int, int64:
		return true
	}
	return false
})

// IsFloat accepts floating-point values.
var IsFloat = Func(func(value any) bool {
	_, ok := value.(float64)
	return ok
})

// IsNumber accepts ints and floats.
var IsNumber = Any(IsInt, IsFloat)

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// NumberBetween accepts numeric values in [lo, hi].
func NumberBetween(lo, hi float64) Validator {
	return Func(func(value any) bool {
		n, ok := asFloat(value)
		return ok && n >= lo && n <= hi
	})
}

// OneOf accepts any of the listed values.
func OneOf(allowed ...any) Validator {
	return Func(func(value any) bool {
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	})
}

// MaxLen accepts strings no longer than n.
func MaxLen(n int) Validator {
	return Func(func(value any) bool {
		s, ok := value.(string)
		return ok && len(s) <= n
	})
}

// IsPath accepts strings naming an existing file or directory.
var IsPath = Func(func(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	_, err := os.Stat(s)
	return err == nil
})

// MemorySizeMax accepts memory-size strings no larger than the limit.
func MemorySizeMax(limit string) Validator {
	max, err := memsize.Parse(limit)
	if err != nil {
		// A broken limit rejects everything; it is a programming error.
		return Func(func(any) bool { return false })
	}
	return Func(func(value any) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		n, err := memsize.Parse(s)
		return err == nil && n <= max
	})
}

// ListOf accepts lists whose every element passes the given validator.
// A scalar value is treated as a one-element list, matching how the
// settings files allow both forms.
func ListOf(elem Validator) Validator {
	return Func(func(value any) bool {
		list, ok := value.([]any)
		if !ok {
			return elem.Validate(value)
		}
		for _, item := range list {
			if !elem.Validate(item) {
				return false
			}
		}
		return true
	})
}

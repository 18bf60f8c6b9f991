// internal/browser/binding.go
package browser

import (
	"fmt"
	"reflect"
	"runtime/debug"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// binding adapts a Go function to a CDP runtime binding. The page calls it
// with a single JSON array payload holding the positional arguments.
type binding struct {
	name   string
	fn     reflect.Value
	logger *zap.Logger
}

func newBinding(name string, fn any, logger *zap.Logger) (*binding, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("binding %q: implementation is not a function", name)
	}
	return &binding{name: name, fn: v, logger: logger}, nil
}

// invoke decodes the payload, converts each argument to the parameter type
// and calls the function. Panics in the function are logged, not propagated.
func (b *binding) invoke(payload string) error {
	var args []any
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return fmt.Errorf("binding %q: bad payload: %w", b.name, err)
	}

	t := b.fn.Type()
	if len(args) != t.NumIn() {
		return fmt.Errorf("binding %q: expected %d arguments, got %d", b.name, t.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, err := convertArg(arg, t.In(i))
		if err != nil {
			return fmt.Errorf("binding %q: argument %d: %w", b.name, i, err)
		}
		in[i] = v
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in exposed function.",
				zap.String("name", b.name),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()
	b.fn.Call(in)
	return nil
}

func convertArg(arg any, want reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(arg)
	switch {
	case !v.IsValid():
		return reflect.Zero(want), nil
	case v.Type().AssignableTo(want):
		return v, nil
	case v.Kind() == reflect.Float64 && isInteger(want.Kind()):
		return reflect.ValueOf(int64(v.Float())).Convert(want), nil
	case v.Kind() != reflect.Float64 && v.Type().ConvertibleTo(want):
		return v.Convert(want), nil
	}

	// Composite values round trip through JSON into the parameter type.
	raw, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(want)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), want)
	}
	return ptr.Elem(), nil
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

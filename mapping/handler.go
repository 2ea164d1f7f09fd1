package mapping

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kinds handled by DefaultTypeHandlers.
const (
	KindString  = "string"
	KindInt     = "int"
	KindInt64   = "int64"
	KindFloat64 = "float64"
	KindBool    = "bool"
	KindTime    = "time"
	KindUUID    = "uuid"
	KindDecimal = "decimal"
	KindBytes   = "bytes"
)

// TypeHandler converts a plain field value between its object and store forms.
// FromStore must accept every shape a backend may hand back for the kind.
type TypeHandler interface {
	IntoStore(value any) (any, error)
	FromStore(raw any) (any, error)
}

// HandlerFuncs adapts a pair of functions to TypeHandler.
type HandlerFuncs struct {
	Into func(value any) (any, error)
	From func(raw any) (any, error)
}

func (h HandlerFuncs) IntoStore(value any) (any, error) { return h.Into(value) }
func (h HandlerFuncs) FromStore(raw any) (any, error)   { return h.From(raw) }

// TypeHandlers maps kinds to their plain type handler.
type TypeHandlers struct {
	handlers map[string]TypeHandler
}

// NewTypeHandlers returns an empty handler table.
func NewTypeHandlers() *TypeHandlers {
	return &TypeHandlers{handlers: make(map[string]TypeHandler)}
}

// DefaultTypeHandlers returns a table holding the built-in kinds.
func DefaultTypeHandlers() *TypeHandlers {
	h := NewTypeHandlers()
	h.Register(KindString, HandlerFuncs{Into: stringInto, From: stringFrom})
	h.Register(KindInt, HandlerFuncs{Into: intInto, From: intFrom})
	h.Register(KindInt64, HandlerFuncs{Into: int64Into, From: int64From})
	h.Register(KindFloat64, HandlerFuncs{Into: float64Into, From: float64From})
	h.Register(KindBool, HandlerFuncs{Into: boolInto, From: boolFrom})
	h.Register(KindTime, HandlerFuncs{Into: timeInto, From: timeFrom})
	h.Register(KindUUID, HandlerFuncs{Into: uuidInto, From: uuidFrom})
	h.Register(KindDecimal, HandlerFuncs{Into: decimalInto, From: decimalFrom})
	h.Register(KindBytes, HandlerFuncs{Into: bytesInto, From: bytesFrom})
	return h
}

// Register sets the handler for kind, replacing any existing one.
func (h *TypeHandlers) Register(kind string, handler TypeHandler) {
	h.handlers[kind] = handler
}

// Handler returns the handler for kind.
func (h *TypeHandlers) Handler(kind string) (TypeHandler, error) {
	handler, ok := h.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTypeHandler, kind)
	}
	return handler, nil
}

func stringInto(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func stringFrom(raw any) (any, error) {
	switch r := raw.(type) {
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	}
	return nil, fmt.Errorf("cannot read string from %T", raw)
}

func intInto(v any) (any, error) {
	i, ok := v.(int)
	if !ok {
		return nil, fmt.Errorf("expected int, got %T", v)
	}
	return int64(i), nil
}

func intFrom(raw any) (any, error) {
	i, err := toInt64(raw)
	if err != nil {
		return nil, err
	}
	return int(i), nil
}

func int64Into(v any) (any, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("expected int64, got %T", v)
	}
	return i, nil
}

func int64From(raw any) (any, error) {
	return toInt64(raw)
}

func toInt64(raw any) (int64, error) {
	switch r := raw.(type) {
	case int:
		return int64(r), nil
	case int32:
		return int64(r), nil
	case int64:
		return r, nil
	case float64:
		if r != math.Trunc(r) {
			return 0, fmt.Errorf("number %v is not integral", r)
		}
		return int64(r), nil
	case json.Number:
		return r.Int64()
	case string:
		return strconv.ParseInt(r, 10, 64)
	case []byte:
		return strconv.ParseInt(string(r), 10, 64)
	}
	return 0, fmt.Errorf("cannot read integer from %T", raw)
}

func float64Into(v any) (any, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("expected float64, got %T", v)
	}
	return f, nil
}

func float64From(raw any) (any, error) {
	switch r := raw.(type) {
	case float64:
		return r, nil
	case float32:
		return float64(r), nil
	case int64:
		return float64(r), nil
	case int:
		return float64(r), nil
	case json.Number:
		return r.Float64()
	case string:
		return strconv.ParseFloat(r, 64)
	case []byte:
		return strconv.ParseFloat(string(r), 64)
	}
	return nil, fmt.Errorf("cannot read float from %T", raw)
}

func boolInto(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

func boolFrom(raw any) (any, error) {
	switch r := raw.(type) {
	case bool:
		return r, nil
	case int64:
		// sqlite stores booleans as 0/1
		return r != 0, nil
	case string:
		return strconv.ParseBool(r)
	}
	return nil, fmt.Errorf("cannot read bool from %T", raw)
}

func timeInto(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", v)
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

func timeFrom(raw any) (any, error) {
	switch r := raw.(type) {
	case time.Time:
		return r.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, r)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(r))
	}
	return nil, fmt.Errorf("cannot read time from %T", raw)
}

func uuidInto(v any) (any, error) {
	u, ok := v.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("expected uuid.UUID, got %T", v)
	}
	return u.String(), nil
}

func uuidFrom(raw any) (any, error) {
	switch r := raw.(type) {
	case uuid.UUID:
		return r, nil
	case string:
		return uuid.Parse(r)
	case []byte:
		if len(r) == 16 {
			return uuid.FromBytes(r)
		}
		return uuid.ParseBytes(r)
	}
	return nil, fmt.Errorf("cannot read uuid from %T", raw)
}

func decimalInto(v any) (any, error) {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return nil, fmt.Errorf("expected decimal.Decimal, got %T", v)
	}
	return d.String(), nil
}

func decimalFrom(raw any) (any, error) {
	switch r := raw.(type) {
	case decimal.Decimal:
		return r, nil
	case string:
		return decimal.NewFromString(r)
	case []byte:
		return decimal.NewFromString(string(r))
	case json.Number:
		return decimal.NewFromString(r.String())
	case float64:
		return decimal.NewFromFloat(r), nil
	case int64:
		return decimal.NewFromInt(r), nil
	}
	return nil, fmt.Errorf("cannot read decimal from %T", raw)
}

func bytesInto(v any) (any, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("expected []byte, got %T", v)
	}
	return append([]byte(nil), b...), nil
}

func bytesFrom(raw any) (any, error) {
	switch r := raw.(type) {
	case []byte:
		return append([]byte(nil), r...), nil
	case string:
		// JSON documents carry bytes as base64 text
		return base64.StdEncoding.DecodeString(r)
	}
	return nil, fmt.Errorf("cannot read bytes from %T", raw)
}

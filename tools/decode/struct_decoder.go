package decode

import (
	"encoding/json"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"socialchat/tools/errs"
)

// Options customizes Decode behaviour.
type Options struct {
	// WeaklyTypedInput accepts "123" for int, 1.0 for int64 and similar.
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

func WithWeaklyTypedInput(v bool) Options {
	return Options{WeaklyTypedInput: v}
}

// Payload decodes an event payload into T. raw may be a json.RawMessage,
// a []byte or an already-unmarshalled value. Field names come from `json`
// tags. A missing or null payload yields the zero T.
func Payload[T any](raw any, opts ...Options) (*T, error) {
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	src, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return &out, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			sliceAnyToSliceStringHook(),
			jsonRawStringToMapHook(),
		),
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "new decoder")
	}
	if err := dec.Decode(src); err != nil {
		return nil, errs.ErrValidation.WrapMsg("invalid payload", "err", err)
	}
	return &out, nil
}

func normalize(raw any) (any, error) {
	var b []byte
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		b = t
	case []byte:
		b = t
	default:
		return raw, nil
	}
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, errs.ErrValidation.WrapMsg("payload is not valid JSON")
	}
	return v, nil
}

// floatToIntHook turns JSON numbers into int / int32 / int64.
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// sliceAnyToSliceStringHook turns []any into []string when the target is []string.
func sliceAnyToSliceStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Slice || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
			return data, nil
		}
		src, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(src))
		for _, it := range src {
			switch v := it.(type) {
			case string:
				out = append(out, v)
			case json.Number:
				out = append(out, v.String())
			default:
				b, _ := json.Marshal(v)
				out = append(out, string(b))
			}
		}
		return out, nil
	}
}

// jsonRawStringToMapHook accepts a JSON object encoded as a string where a map is expected.
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}

package settings

import (
	"encoding/json"
	"fmt"
	"strconv"

	"lumina/internal/services"
)

// Type enumerates the value encodings a setting can carry.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeJSON    Type = "json"
)

// ParseType converts a persisted type tag into a known Type.
func ParseType(value string) (Type, bool) {
	switch Type(value) {
	case TypeString, TypeNumber, TypeBoolean, TypeJSON:
		return Type(value), true
	default:
		return "", false
	}
}

// serialize encodes a value into its persisted text form. Strings pass
// through; numbers, booleans, and JSON use structured text forms that
// deserialize decodes back through the type tag.
func serialize(value any, valueType Type) (string, error) {
	switch valueType {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return "", services.Wrap(services.ErrValidation, "settings", "serialize", fmt.Sprintf("expected string, got %T", value), nil)
		}
		return s, nil
	case TypeNumber:
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		default:
			return "", services.Wrap(services.ErrValidation, "settings", "serialize", fmt.Sprintf("expected number, got %T", value), nil)
		}
	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return "", services.Wrap(services.ErrValidation, "settings", "serialize", fmt.Sprintf("expected boolean, got %T", value), nil)
		}
		return strconv.FormatBool(b), nil
	case TypeJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "settings", "serialize", "value is not JSON-encodable", err)
		}
		return string(data), nil
	default:
		return "", services.Wrap(services.ErrValidation, "settings", "serialize", fmt.Sprintf("unknown setting type %q", valueType), nil)
	}
}

// deserialize decodes a persisted text form through its type tag. Corrupt
// payloads fail with a deserialization error rather than silently returning
// a zero value.
func deserialize(raw string, valueType Type) (any, error) {
	switch valueType {
	case TypeString:
		return raw, nil
	case TypeNumber:
		number, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, services.Wrap(services.ErrDeserialization, "settings", "deserialize", fmt.Sprintf("corrupt number %q", raw), err)
		}
		return number, nil
	case TypeBoolean:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, services.Wrap(services.ErrDeserialization, "settings", "deserialize", fmt.Sprintf("corrupt boolean %q", raw), nil)
		}
	case TypeJSON:
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, services.Wrap(services.ErrDeserialization, "settings", "deserialize", "corrupt json payload", err)
		}
		return value, nil
	default:
		return nil, services.Wrap(services.ErrDeserialization, "settings", "deserialize", fmt.Sprintf("unknown setting type %q", valueType), nil)
	}
}

package masking

import "strings"

const maskRune = '*'

// MaskName hides the middle of a personal name, keeping the first and last rune.
func MaskName(value string) string {
	runes := []rune(strings.TrimSpace(value))
	switch len(runes) {
	case 0:
		return ""
	case 1:
		return string(maskRune)
	case 2:
		return string(runes[0]) + string(maskRune)
	}

	out := make([]rune, len(runes))
	out[0] = runes[0]
	for i := 1; i < len(runes)-1; i++ {
		if runes[i] == ' ' {
			out[i] = ' '
			continue
		}
		out[i] = maskRune
	}
	out[len(out)-1] = runes[len(runes)-1]
	return string(out)
}

// MaskFields returns a copy of input with the named string fields masked.
func MaskFields(input map[string]any, keys ...string) map[string]any {
	if len(input) == 0 {
		return nil
	}

	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[strings.TrimSpace(key)] = struct{}{}
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := sensitive[trimmedKey]; ok {
			masked[trimmedKey] = maskValue(value)
			continue
		}
		masked[trimmedKey] = value
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskName(cast)
	case []string:
		out := make([]string, 0, len(cast))
		for _, item := range cast {
			out = append(out, MaskName(item))
		}
		return out
	default:
		return value
	}
}

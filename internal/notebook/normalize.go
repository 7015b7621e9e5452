package notebook

import (
	"fmt"
	"strings"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

// NormalizeTags converts a loosely typed tag value into a trimmed, deduplicated list.
// A bare string becomes a single tag; nil and empty values are dropped.
func NormalizeTags(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case []string:
		collected := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				collected = append(collected, s)
			}
		}
		return MergeTags(collected)
	case []any:
		collected := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprint(item)
			}
			if s = strings.TrimSpace(s); s != "" {
				collected = append(collected, s)
			}
		}
		return MergeTags(collected)
	default:
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return []string{s}
		}
		return nil
	}
}

// MergeTags concatenates tag sets, keeping the first occurrence of each tag.
func MergeTags(sets ...[]string) []string {
	var merged []string
	seen := make(map[string]bool)
	for _, set := range sets {
		for _, tag := range set {
			if !seen[tag] {
				seen[tag] = true
				merged = append(merged, tag)
			}
		}
	}
	return merged
}

// NormalizeCellMetadata copies metadata and normalizes its tags. Empty results are nil.
func NormalizeCellMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	normalized := cloneMap(metadata)
	if tags := NormalizeTags(normalized["tags"]); len(tags) > 0 {
		normalized["tags"] = tags
	} else {
		delete(normalized, "tags")
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

// NormalizeMetadata copies pad metadata and canonicalizes the recognized keys:
// derived cell_tags is dropped, the schema registry, tags, namespace and the
// canonical text fields are normalized, and empty-after-trim values are removed.
func NormalizeMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	normalized := cloneMap(metadata)
	delete(normalized, "cell_tags")

	if raw, ok := normalized["schemas"]; ok {
		if registry := NormalizeRegistry(raw); len(registry) > 0 {
			normalized["schemas"] = registry.toMetadata()
		} else {
			delete(normalized, "schemas")
		}
	}

	if tags := NormalizeTags(normalized["tags"]); len(tags) > 0 {
		normalized["tags"] = tags
	} else {
		delete(normalized, "tags")
	}

	for _, field := range append([]string{"namespace"}, CanonicalFields...) {
		value, ok := normalized[field]
		if !ok {
			continue
		}
		if trimmed := trimValue(value); trimmed != "" {
			normalized[field] = trimmed
		} else {
			delete(normalized, field)
		}
	}

	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func trimValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NormalizeNamespace trims a namespace name and rejects empty values.
func NormalizeNamespace(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", scerrors.NewValidation("namespace must not be empty")
	}
	return trimmed, nil
}

func unsupportedLanguage(language string) error {
	return scerrors.NewValidation(fmt.Sprintf("unsupported language %q", language)).
		WithDetail("language", language)
}

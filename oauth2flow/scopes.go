package oauth2flow

import (
	"sort"
	"strings"
)

// ScopeMatchMode defines how required scopes are matched against granted scopes.
type ScopeMatchMode string

const (
	// ScopeMatchAny succeeds if any required scope was granted.
	ScopeMatchAny ScopeMatchMode = "any"
	// ScopeMatchAll succeeds only if every required scope was granted.
	ScopeMatchAll ScopeMatchMode = "all"
)

// normalize maps unknown modes to "all" (fail-closed) and "" to "any".
func (m ScopeMatchMode) normalize() ScopeMatchMode {
	switch strings.ToLower(strings.TrimSpace(string(m))) {
	case "", string(ScopeMatchAny):
		return ScopeMatchAny
	default:
		return ScopeMatchAll
	}
}

// missingScopes returns the required scopes not satisfied by granted under mode.
func missingScopes(granted, required []string, mode ScopeMatchMode) []string {
	required = normalizeScopes(required)
	if len(required) == 0 {
		return nil
	}

	available := make(map[string]struct{}, len(granted))
	for _, scope := range granted {
		available[scope] = struct{}{}
	}

	if mode.normalize() == ScopeMatchAny {
		for _, scope := range required {
			if _, ok := available[scope]; ok {
				return nil
			}
		}
		return required
	}

	missing := make([]string, 0, len(required))
	for _, scope := range required {
		if _, ok := available[scope]; !ok {
			missing = append(missing, scope)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

// mergeScopes returns defaults followed by requested, trimmed and de-duplicated.
func mergeScopes(defaults, requested []string) []string {
	all := make([]string, 0, len(defaults)+len(requested))
	all = append(all, defaults...)
	all = append(all, requested...)
	return normalizeScopes(all)
}

func normalizeScopes(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// scopesFromClaim reads a "scope" / "scp" claim value: a space separated string,
// a list of strings, or a map whose keys are scopes.
func scopesFromClaim(value any) []string {
	switch typed := value.(type) {
	case string:
		return strings.Fields(typed)
	case []string:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			result = append(result, strings.Fields(item)...)
		}
		return result
	case []any:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			result = append(result, scopesFromClaim(item)...)
		}
		return result
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, strings.TrimSpace(key))
		}
		sort.Strings(keys)
		return keys
	default:
		return nil
	}
}

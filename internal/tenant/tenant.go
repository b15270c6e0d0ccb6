package tenant

import "strings"

// Resolve derives a stable tenant id from an opaque identifier-or-path
// string: the identity provider's iam_client field may be either a bare uuid
// or a resource path ending in one. Returns ok=false when no usable segment
// remains.
func Resolve(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	trimmed = strings.TrimSuffix(trimmed, "/")

	var last string
	for _, segment := range strings.Split(trimmed, "/") {
		if segment != "" {
			last = segment
		}
	}
	if last == "" {
		return "", false
	}

	return last, true
}

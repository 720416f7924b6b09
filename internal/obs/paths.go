package obs

import "strings"

// CanonicalPath collapses resource identifiers embedded in known routes so
// metric labels stay low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}

	switch {
	case strings.HasPrefix(path, "/v1/notifications/"):
		rest := strings.TrimPrefix(path, "/v1/notifications/")
		switch rest {
		case "unread-count", "read-all", "read":
			return path
		}
		if strings.HasSuffix(rest, "/read") {
			return "/v1/notifications/:id/read"
		}
		if !strings.Contains(rest, "/") {
			return "/v1/notifications/:id"
		}
	case strings.HasPrefix(path, "/v1/projects/"):
		rest := strings.TrimPrefix(path, "/v1/projects/")
		if strings.HasSuffix(rest, "/audit") {
			return "/v1/projects/:id/audit"
		}
		if !strings.Contains(rest, "/") && rest != "" {
			return "/v1/projects/:id"
		}
	}
	return path
}

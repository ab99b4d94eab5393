// Package placement decides where in an existing codebase a new capability
// belongs: which module directory receives the generated artifacts, and
// whether an existing controller should be extended or a new one created.
package placement

import "strings"

// Field describes one declared request or response field of the target API.
type Field struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Descriptor describes the API to generate: the HTTP surface plus the
// free-text business intent supplied by the requester.
type Descriptor struct {
	Method         string  `json:"method"`
	Path           string  `json:"path"`
	Intent         string  `json:"intent,omitempty"`
	RequestFields  []Field `json:"request_fields,omitempty"`
	ResponseFields []Field `json:"response_fields,omitempty"`
}

var readVerbs = []string{"list", "query", "get", "find", "search", "page", "detail"}

var exportVerbs = []string{"export", "sync", "push", "report", "download", "integration"}

// IsRead classifies the operation as a read by verb heuristics on the final
// path segment and the intent text.
func (d Descriptor) IsRead() bool {
	subject := strings.ToLower(lastSegment(d.Path) + " " + d.Intent)
	for _, verb := range readVerbs {
		if strings.Contains(subject, verb) {
			return true
		}
	}
	return false
}

// IsExport reports whether the operation looks like an export/integration
// call, which makes an external-call client a recommended artifact.
func (d Descriptor) IsExport() bool {
	subject := strings.ToLower(lastSegment(d.Path) + " " + d.Intent)
	for _, verb := range exportVerbs {
		if strings.Contains(subject, verb) {
			return true
		}
	}
	return false
}

// PathSegments returns the non-empty segments of the API path.
func (d Descriptor) PathSegments() []string {
	var segments []string
	for _, s := range strings.Split(d.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func lastSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

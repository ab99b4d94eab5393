package session

import "strings"

// Step is one parsed oracle response: the stated reasoning, the declared
// next action, an optional tool invocation, and zero or more candidate
// source artifacts. An all-zero Step means the response was unparseable.
type Step struct {
	Thought   string
	Action    string
	Tool      *ToolCall
	Artifacts []CandidateArtifact
}

// ToolCall is a request to run the read-only analysis collaborator.
type ToolCall struct {
	Name string
	Arg  string
}

// CandidateArtifact is a fenced code block lifted from the oracle response,
// before classification. DeclaredRole and DeclaredPath are oracle-supplied
// hints and may be wrong or absent.
type CandidateArtifact struct {
	Language     string
	DeclaredRole Role
	DeclaredPath string
	SourceText   string
}

// Empty reports whether the step carries nothing actionable.
func (s Step) Empty() bool {
	return s.Thought == "" && s.Action == "" && s.Tool == nil && len(s.Artifacts) == 0
}

const (
	markerThought = "Thought:"
	markerAction  = "Action:"
	markerTool    = "Tool:"
	markerRole    = "Role:"
	markerFile    = "File:"
)

// ParseStep extracts the structured step from a raw oracle response. The
// format is line-oriented: "Thought:" and "Action:" prefixes, an optional
// "Tool: <name> <arg>" invocation, and fenced code blocks optionally
// preceded by "Role:" and "File:" hint lines. Unknown lines are ignored so
// chatty responses still parse.
func ParseStep(raw string) Step {
	var step Step
	var pendingRole Role
	var pendingPath string

	lines := strings.Split(raw, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		switch {
		case strings.HasPrefix(line, markerThought):
			step.Thought = strings.TrimSpace(strings.TrimPrefix(line, markerThought))
		case strings.HasPrefix(line, markerAction):
			step.Action = strings.TrimSpace(strings.TrimPrefix(line, markerAction))
		case strings.HasPrefix(line, markerTool):
			rest := strings.TrimSpace(strings.TrimPrefix(line, markerTool))
			name, arg, _ := strings.Cut(rest, " ")
			if name != "" {
				step.Tool = &ToolCall{Name: name, Arg: strings.TrimSpace(arg)}
			}
		case strings.HasPrefix(line, markerRole):
			pendingRole = Role(strings.TrimSpace(strings.TrimPrefix(line, markerRole)))
		case strings.HasPrefix(line, markerFile):
			pendingPath = strings.TrimSpace(strings.TrimPrefix(line, markerFile))
		case strings.HasPrefix(line, "```"):
			lang := strings.TrimSpace(strings.TrimPrefix(line, "```"))
			body, next := collectFence(lines, i+1)
			i = next
			text := strings.TrimSpace(body)
			if text != "" {
				step.Artifacts = append(step.Artifacts, CandidateArtifact{
					Language:     lang,
					DeclaredRole: pendingRole,
					DeclaredPath: pendingPath,
					SourceText:   text,
				})
			}
			pendingRole = ""
			pendingPath = ""
		}
	}
	return step
}

// collectFence gathers lines until the closing fence and returns the body
// plus the index of the closing line. An unterminated fence consumes the
// rest of the input.
func collectFence(lines []string, start int) (string, int) {
	var b strings.Builder
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			return b.String(), i
		}
		b.WriteString(lines[i])
		b.WriteString("\n")
	}
	return b.String(), len(lines) - 1
}

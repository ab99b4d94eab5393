package session

import (
	"fmt"
	"strings"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/placement"
)

// systemPrompt describes the task, the target codebase's conventions, and
// the response protocol the parser expects. Built once at Initializing.
func systemPrompt(d placement.Descriptor, p *placement.Placement, features analyzer.FrameworkFeatures) string {
	var b strings.Builder

	b.WriteString("You generate Java source for an existing Spring codebase.\n")
	fmt.Fprintf(&b, "Target API: %s %s\n", d.Method, d.Path)
	if d.Intent != "" {
		fmt.Fprintf(&b, "Business intent: %s\n", d.Intent)
	}
	fmt.Fprintf(&b, "Target module directory: %s\n", p.Dir)
	if p.Mode == placement.ModeExtend && p.EntryPoint != nil {
		fmt.Fprintf(&b, "Extend the existing controller %s instead of creating a new one.\n", p.EntryPoint.Name)
	}

	var conventions []string
	if features.MyBatisPlus {
		conventions = append(conventions, "MyBatis-Plus for persistence")
	}
	if features.Lombok {
		conventions = append(conventions, "Lombok annotations on DTOs")
	}
	if features.Swagger {
		conventions = append(conventions, "Swagger annotations on controllers")
	}
	if features.Feign {
		conventions = append(conventions, "Feign clients for external calls")
	}
	if len(conventions) > 0 {
		fmt.Fprintf(&b, "Codebase conventions: %s.\n", strings.Join(conventions, ", "))
	}

	if len(d.RequestFields) > 0 {
		b.WriteString("Request fields:\n")
		writeFields(&b, d.RequestFields)
	}
	if len(d.ResponseFields) > 0 {
		b.WriteString("Response fields:\n")
		writeFields(&b, d.ResponseFields)
	}

	b.WriteString(`
Respond in this format:
Thought: <your reasoning>
Action: <what you produce this round>
Optionally request analysis with: Tool: analyze <subtree or concern>
Emit each source unit as a fenced code block preceded by:
Role: <controller|application_service|domain_service|mapper|mapper_xml|request_dto|response_dto|entity|feign_client>
File: <file name>
Produce one or two units per round. Existing files are merged, not replaced.
`)
	return b.String()
}

func writeFields(b *strings.Builder, fields []placement.Field) {
	for _, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "String"
		}
		fmt.Fprintf(b, "  - %s %s", typ, f.Name)
		if f.Comment != "" {
			fmt.Fprintf(b, " (%s)", f.Comment)
		}
		b.WriteString("\n")
	}
}

// guidance synthesizes the per-round directive pointing the oracle at the
// narrowest next increment: the first missing required role plus the call
// chain it must fit into, and the validation state of what already landed.
func guidance(missing []Role, produced map[Role]*Artifact) string {
	var b strings.Builder

	if len(produced) > 0 {
		b.WriteString("Already produced and written to disk:")
		for role, a := range produced {
			status := "valid"
			if !a.Valid {
				status = "failed validation, regenerate"
			}
			fmt.Fprintf(&b, " %s (%s)", role, status)
		}
		b.WriteString(".\n")
	}

	if len(missing) == 0 {
		return b.String()
	}

	next := missing[0]
	fmt.Fprintf(&b, "Produce the %s next. It belongs in the chain: %s.\n", next, callChains[next])
	if len(missing) > 1 {
		names := make([]string, len(missing)-1)
		for i, r := range missing[1:] {
			names[i] = string(r)
		}
		fmt.Fprintf(&b, "Still missing after that: %s.\n", strings.Join(names, ", "))
	}
	return b.String()
}

// singleShotPrompt asks for every missing required role in one response,
// used by the fallback path when the convergence loop is exhausted.
func singleShotPrompt(missing []Role) string {
	names := make([]string, len(missing))
	for i, r := range missing {
		names[i] = string(r)
	}
	return fmt.Sprintf(
		"Produce all of the following units in a single response, each as a fenced code block with Role: and File: lines: %s. No iteration will follow.",
		strings.Join(names, ", "))
}

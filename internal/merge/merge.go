// Package merge performs textual, signature-aware merging of generated
// members into an existing compilation unit. It is not an AST transformer:
// member boundaries come from a brace scanner and signatures from normalized
// name+parameter shapes. Merging is idempotent, so re-running generation
// against an already patched file never duplicates members.
package merge

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoClosingBrace means the existing unit's closing scope marker could not
// be located. The unit is unmergeable; callers must surface this as a
// validation failure rather than write a corrupted file.
var ErrNoClosingBrace = errors.New("merge: closing brace not found")

var (
	methodSigRe = regexp.MustCompile(`(?s)\b(?:public|protected|private)\b[^={;]*?\b(\w+)\s*\(([^)]*)\)`)
	fieldSigRe  = regexp.MustCompile(`(?s)\b(?:public|protected|private)\b[^={;()]*?\b(\w+)\s*[=;]`)
	importRe    = regexp.MustCompile(`(?m)^import\s+(?:static\s+)?[\w.*]+\s*;`)
	packageRe   = regexp.MustCompile(`(?m)^package\s+[\w.]+\s*;`)
	typeDeclRe  = regexp.MustCompile(`\b(?:class|interface|enum)\s+\w+`)
)

// Merge inserts members of incoming that are absent from existing (matched by
// signature: member name plus normalized parameter type list) immediately
// before existing's closing scope marker. Members whose signature already
// exists are dropped silently, so Merge(Merge(u, m), m) == Merge(u, m).
func Merge(existing, incoming string) (string, error) {
	closing := strings.LastIndex(existing, "}")
	if closing < 0 {
		return "", fmt.Errorf("%w in existing unit", ErrNoClosingBrace)
	}

	existingSigs := map[string]bool{}
	for _, m := range scanMembers(unitBody(existing)) {
		if sig := signatureOf(m); sig != "" {
			existingSigs[sig] = true
		}
	}

	var additions []string
	for _, m := range scanMembers(unitBody(incoming)) {
		sig := signatureOf(m)
		if sig == "" || existingSigs[sig] {
			continue
		}
		existingSigs[sig] = true
		additions = append(additions, m)
	}

	merged := existing
	if len(additions) > 0 {
		var block strings.Builder
		for _, m := range additions {
			block.WriteString("\n    ")
			block.WriteString(reindent(m, "    "))
			block.WriteString("\n")
		}
		merged = merged[:closing] + block.String() + merged[closing:]
	}

	return mergeImports(merged, incoming), nil
}

// unitBody returns the text inside the outermost type declaration's braces.
// Text without a type declaration is treated as a bare member list.
func unitBody(text string) string {
	loc := typeDeclRe.FindStringIndex(text)
	if loc == nil {
		return text
	}
	open := strings.Index(text[loc[1]:], "{")
	if open < 0 {
		return text
	}
	start := loc[1] + open + 1
	end := strings.LastIndex(text, "}")
	if end <= start {
		return text[start:]
	}
	return text[start:end]
}

// scanMembers splits a type body into top-level members: a member ends at a
// semicolon at depth zero (fields) or at the brace closing a body opened at
// depth zero (methods, initializers, nested types). String literals and
// comments are skipped so braces inside them do not confuse the depth count.
func scanMembers(body string) []string {
	var members []string
	depth := 0
	start := 0
	i := 0
	n := len(body)

	flush := func(end int) {
		member := strings.TrimSpace(body[start:end])
		if member != "" {
			members = append(members, member)
		}
		start = end
	}

	for i < n {
		switch c := body[i]; c {
		case '/':
			if i+1 < n && body[i+1] == '/' {
				for i < n && body[i] != '\n' {
					i++
				}
				continue
			}
			if i+1 < n && body[i+1] == '*' {
				end := strings.Index(body[i+2:], "*/")
				if end < 0 {
					i = n
					continue
				}
				i += end + 4
				continue
			}
		case '"', '\'':
			quote := c
			i++
			for i < n {
				if body[i] == '\\' {
					i += 2
					continue
				}
				if body[i] == quote {
					i++
					break
				}
				i++
			}
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				flush(i + 1)
			}
		case ';':
			if depth == 0 {
				flush(i + 1)
			}
		}
		i++
	}
	return members
}

// signatureOf derives a stable identity for a member: "name(type,type)" for
// methods, "name" for fields. Parameter names and generic spacing are
// normalized away so `list(LimitQuery query)` and `list(LimitQuery q)` match.
func signatureOf(member string) string {
	if m := methodSigRe.FindStringSubmatch(member); m != nil {
		return m[1] + "(" + normalizeParams(m[2]) + ")"
	}
	if m := fieldSigRe.FindStringSubmatch(member); m != nil {
		return m[1]
	}
	return ""
}

func normalizeParams(params string) string {
	params = strings.TrimSpace(params)
	if params == "" {
		return ""
	}
	var types []string
	for _, p := range splitTopLevel(params) {
		fields := strings.Fields(strings.TrimSpace(p))
		if len(fields) == 0 {
			continue
		}
		// Drop annotations and the trailing parameter name; what remains is
		// the type.
		var typeTokens []string
		for _, f := range fields[:len(fields)-1] {
			if strings.HasPrefix(f, "@") {
				continue
			}
			typeTokens = append(typeTokens, f)
		}
		if len(typeTokens) == 0 {
			// A single token is a type-less name in practice only for
			// generated placeholder params; keep it as the identity.
			typeTokens = fields[:1]
		}
		types = append(types, strings.ReplaceAll(strings.Join(typeTokens, ""), " ", ""))
	}
	return strings.Join(types, ",")
}

// splitTopLevel splits a parameter list on commas that are not nested inside
// generics.
func splitTopLevel(params string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, c := range params {
		switch c {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, params[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, params[start:])
	return parts
}

// mergeImports copies import lines from incoming that existing lacks,
// inserted after existing's import block (or package line).
func mergeImports(existing, incoming string) string {
	existingImports := map[string]bool{}
	for _, imp := range importRe.FindAllString(existing, -1) {
		existingImports[strings.TrimSpace(imp)] = true
	}

	var missing []string
	for _, imp := range importRe.FindAllString(incoming, -1) {
		if !existingImports[strings.TrimSpace(imp)] {
			missing = append(missing, strings.TrimSpace(imp))
			existingImports[strings.TrimSpace(imp)] = true
		}
	}
	if len(missing) == 0 {
		return existing
	}

	insertAt := 0
	if locs := importRe.FindAllStringIndex(existing, -1); len(locs) > 0 {
		insertAt = locs[len(locs)-1][1]
	} else if loc := packageRe.FindStringIndex(existing); loc != nil {
		insertAt = loc[1]
	}
	block := "\n" + strings.Join(missing, "\n")
	return existing[:insertAt] + block + existing[insertAt:]
}

// reindent re-levels a member's continuation lines under the given indent.
func reindent(member, indent string) string {
	lines := strings.Split(member, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + strings.TrimLeft(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}

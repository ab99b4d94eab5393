package session

import (
	"regexp"
	"strings"
)

var classNameRe = regexp.MustCompile(`(?m)\b(?:class|interface|enum)\s+(\w+)`)

// Classification is the assigned role plus how sure the classifier is.
// Low-confidence artifacts are still kept; an unclassifiable one lands as
// RoleUnknown and never satisfies a contract slot.
type Classification struct {
	Role       Role
	Confidence float64
}

// Classify assigns a role to a candidate artifact by structural signature.
// The oracle's declared role is trusted only when the structure does not
// contradict it.
func Classify(c CandidateArtifact) Classification {
	structural := classifyStructural(c)

	if c.DeclaredRole != "" && c.DeclaredRole != RoleUnknown {
		if structural.Role == c.DeclaredRole {
			return Classification{Role: structural.Role, Confidence: 1.0}
		}
		// Structure wins over the label when it is confident, otherwise
		// take the oracle's word with reduced confidence.
		if structural.Confidence >= 0.8 {
			return structural
		}
		return Classification{Role: c.DeclaredRole, Confidence: 0.6}
	}
	return structural
}

func classifyStructural(c CandidateArtifact) Classification {
	text := c.SourceText

	if strings.EqualFold(c.Language, "xml") || strings.Contains(text, "<mapper") {
		return Classification{Role: RoleMapperXML, Confidence: 0.9}
	}

	switch {
	case strings.Contains(text, "@RestController"), strings.Contains(text, "@Controller"):
		return Classification{Role: RoleController, Confidence: 0.95}
	case strings.Contains(text, "@FeignClient"):
		return Classification{Role: RoleFeignClient, Confidence: 0.95}
	case strings.Contains(text, "@Mapper") || isInterfaceNamed(text, "Mapper"):
		return Classification{Role: RoleMapper, Confidence: 0.9}
	case strings.Contains(text, "@TableName"), isClassNamed(text, "DO", "Entity", "PO"):
		return Classification{Role: RoleEntity, Confidence: 0.85}
	}

	name := declaredName(text)
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "request"), strings.HasSuffix(lower, "req"),
		strings.HasSuffix(lower, "reqdto"), strings.HasSuffix(lower, "param"):
		return Classification{Role: RoleRequestDTO, Confidence: 0.85}
	case strings.HasSuffix(lower, "response"), strings.HasSuffix(lower, "resp"),
		strings.HasSuffix(lower, "respdto"), strings.HasSuffix(lower, "vo"):
		return Classification{Role: RoleResponseDTO, Confidence: 0.85}
	case strings.HasSuffix(lower, "appservice"), strings.HasSuffix(lower, "applicationservice"),
		strings.HasSuffix(lower, "facade"):
		return Classification{Role: RoleApplicationService, Confidence: 0.85}
	case strings.HasSuffix(lower, "serviceimpl"), strings.HasSuffix(lower, "service"):
		if strings.Contains(text, "interface ") {
			return Classification{Role: RoleDomainService, Confidence: 0.7}
		}
		return Classification{Role: RoleDomainService, Confidence: 0.8}
	}

	if name == "" {
		return Classification{Role: RoleUnknown, Confidence: 0}
	}
	return Classification{Role: RoleUnknown, Confidence: 0.2}
}

func declaredName(text string) string {
	m := classNameRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func isInterfaceNamed(text string, suffix string) bool {
	name := declaredName(text)
	return strings.Contains(text, "interface ") && strings.HasSuffix(name, suffix)
}

func isClassNamed(text string, suffixes ...string) bool {
	name := declaredName(text)
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

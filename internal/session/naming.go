package session

import (
	"path/filepath"
	"strings"

	"github.com/apiforge/apiforge/internal/placement"
)

// baseName turns the business keyword into the type-name stem shared by the
// generated units, e.g. "limit" -> "Limit".
func baseName(keyword string) string {
	if keyword == "" {
		return "Generated"
	}
	return strings.ToUpper(keyword[:1]) + keyword[1:]
}

// operationName turns the final path segment into a type-name stem for the
// DTO pair, e.g. "listUnitLimitByCompanyId" -> "ListUnitLimitByCompanyId".
func operationName(d placement.Descriptor) string {
	segments := d.PathSegments()
	if len(segments) == 0 {
		return "Operation"
	}
	last := segments[len(segments)-1]
	return strings.ToUpper(last[:1]) + last[1:]
}

// fileNameFor returns the unit file name for a role.
func fileNameFor(role Role, keyword string, d placement.Descriptor) string {
	base := baseName(keyword)
	op := operationName(d)
	switch role {
	case RoleController:
		return base + "Controller.java"
	case RoleApplicationService:
		return base + "AppService.java"
	case RoleDomainService:
		return base + "Service.java"
	case RoleMapper:
		return base + "Mapper.java"
	case RoleMapperXML:
		return base + "Mapper.xml"
	case RoleRequestDTO:
		return op + "Request.java"
	case RoleResponseDTO:
		return op + "Response.java"
	case RoleEntity:
		return base + "DO.java"
	case RoleFeignClient:
		return base + "Client.java"
	default:
		return base + ".java"
	}
}

// targetPathFor resolves where an artifact of the given role lands. The
// controller follows the extend recommendation onto the matched entry-point
// file; everything else goes into the resolved directory.
func targetPathFor(role Role, p *placement.Placement, d placement.Descriptor) string {
	if role == RoleController && p.Mode == placement.ModeExtend && p.EntryPoint != nil {
		return p.EntryPoint.File
	}
	return filepath.Join(p.Dir, fileNameFor(role, p.Keyword, d))
}

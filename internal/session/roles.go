// Package session drives the convergence loop for one generation task: it
// repeatedly prompts the oracle, parses its response into candidate
// artifacts, merges them into the target tree, validates what landed, and
// stops when the required-role contract is satisfied or the round budget
// runs out.
package session

import (
	"sort"

	"github.com/apiforge/apiforge/internal/placement"
)

// Role identifies the architectural position of a produced artifact.
type Role string

const (
	RoleController         Role = "controller"
	RoleApplicationService Role = "application_service"
	RoleDomainService      Role = "domain_service"
	RoleMapper             Role = "mapper"
	RoleMapperXML          Role = "mapper_xml"
	RoleRequestDTO         Role = "request_dto"
	RoleResponseDTO        Role = "response_dto"
	RoleEntity             Role = "entity"
	RoleFeignClient        Role = "feign_client"
	RoleUnknown            Role = "unknown"
)

// Contract is the set of roles a session must produce before it may
// complete, plus the roles that are merely recommended.
type Contract struct {
	Required    map[Role]bool
	Recommended map[Role]bool
}

// ContractFor derives the required-role contract from the target
// descriptor. The controller is always required. DTO roles follow the
// declared field lists. Read operations need the full query chain down to
// the mapper definition; side-effecting operations need the service pair
// only. An external-call client is recommended, never required.
func ContractFor(d placement.Descriptor) Contract {
	c := Contract{
		Required:    map[Role]bool{RoleController: true},
		Recommended: map[Role]bool{},
	}

	if len(d.RequestFields) > 0 {
		c.Required[RoleRequestDTO] = true
	}
	if len(d.ResponseFields) > 0 {
		c.Required[RoleResponseDTO] = true
	}

	if d.IsRead() {
		c.Required[RoleApplicationService] = true
		c.Required[RoleDomainService] = true
		c.Required[RoleMapper] = true
		c.Required[RoleMapperXML] = true
	} else {
		c.Required[RoleApplicationService] = true
		c.Required[RoleDomainService] = true
	}

	if d.IsExport() {
		c.Recommended[RoleFeignClient] = true
	}

	return c
}

// Missing returns the required roles not yet present in produced, in a
// stable order.
func (c Contract) Missing(produced map[Role]*Artifact) []Role {
	var missing []Role
	for role := range c.Required {
		a, ok := produced[role]
		if !ok || !a.Valid {
			missing = append(missing, role)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// Satisfied reports whether every required role has a validated artifact.
func (c Contract) Satisfied(produced map[Role]*Artifact) bool {
	return len(c.Missing(produced)) == 0
}

// callChains describes, per role, the architectural chain the artifact must
// fit into. Used when synthesizing guidance for the next round.
var callChains = map[Role]string{
	RoleController:         "controller -> application service",
	RoleApplicationService: "controller -> application service -> domain service",
	RoleDomainService:      "application service -> domain service -> mapper",
	RoleMapper:             "domain service -> mapper -> mapper XML",
	RoleMapperXML:          "mapper -> mapper XML (SQL definition)",
	RoleRequestDTO:         "controller parameter object",
	RoleResponseDTO:        "controller return object",
	RoleEntity:             "mapper result object",
	RoleFeignClient:        "application service -> external client",
}

// Package analyzer provides the read-only codebase analysis collaborator:
// given a source tree root it reports modules, HTTP entry points with their
// declared routes, and detected framework features. The generation core never
// mutates anything through this package.
package analyzer

import "context"

// EntryPoint is an externally-addressable component (an HTTP controller)
// discovered in the codebase.
type EntryPoint struct {
	Name       string   // declared type name, e.g. "LimitController"
	File       string   // absolute path to the source unit
	BaseRoutes []string // class-level request mappings, e.g. "/api/limit"
}

// Module is a directory that looks like a compilable source root.
type Module struct {
	Path      string // absolute directory path
	UnitCount int    // number of source units beneath it
}

// FrameworkFeatures records conventions detected in the codebase that shape
// what the oracle is asked to produce.
type FrameworkFeatures struct {
	MyBatisPlus bool
	Lombok      bool
	Swagger     bool
	Feign       bool
}

// Analysis is the result of analyzing a codebase root.
type Analysis struct {
	Root        string
	Modules     []Module
	EntryPoints []EntryPoint
	Features    FrameworkFeatures
}

// Analyzer turns a source tree into structural facts. Implementations must be
// read-only with respect to the tree.
type Analyzer interface {
	// Analyze scans root. hint optionally narrows the scan to a subtree or
	// concern; implementations may ignore it.
	Analyze(ctx context.Context, root, hint string) (*Analysis, error)
}

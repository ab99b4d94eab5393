package session

// Artifact is one produced source unit. The session owns it until the text
// is written to TargetPath; after that the file on disk is authoritative
// and subsequent rounds merge into it instead of replacing it.
type Artifact struct {
	Role       Role
	SourceText string
	TargetPath string
	Round      int
	Valid      bool
}

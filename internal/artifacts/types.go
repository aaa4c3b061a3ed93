package artifacts

// Workspace holds information about a session's artifact directory.
type Workspace struct {
	SessionID string   // Session the artifacts belong to
	Path      string   // Absolute path of the directory
	Files     []string // File names relative to Path
}

// ManagerConfig configures the artifact manager.
type ManagerConfig struct {
	Root string // Directory holding one subdirectory per session (default ".westbay/artifacts")
}

// Well-known artifact names.
const (
	ReportFile    = "report.md"
	StructureFile = "structure.json"
	ChartsDir     = "charts"
)

package version

// Overridden at build time with -ldflags "-X facewatch/internal/version.VERSION=...".
var (
	VERSION = "dev"
	COMMIT  = "unknown"
)

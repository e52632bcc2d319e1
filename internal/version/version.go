package version

// Version is the tubegrab release version, overridable at build time via
// -ldflags "-X tubegrab/internal/version.Version=...".
var Version = "0.2.0"

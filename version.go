/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

// Version information set by build flags
var (
	// Version is the semantic version of docstore
	Version = "0.1.0"

	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"

	// BuildDate is the build date (set by build flags)
	BuildDate = "unknown"
)

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version" bson:"version"`
	GitCommit string `json:"gitCommit" bson:"gitCommit"`
	BuildDate string `json:"buildDate" bson:"buildDate"`
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}
}

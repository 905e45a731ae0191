package version

import (
	"strconv"
	"time"
)

const DevelopmentVersion = "dev"

// Populated at build time via -ldflags.
var (
	ProductVersion = DevelopmentVersion
	CommitHash     = ""
	BuildTimestamp = ""
)

type VersionOutput struct {
	Version    string `json:"version"`
	CommitHash string `json:"commitHash,omitempty"`
	BuildTime  string `json:"buildTimestamp,omitempty"`
}

func Version() VersionOutput {
	var buildTime string
	if BuildTimestamp != "" {
		if unix, err := strconv.ParseInt(BuildTimestamp, 10, 64); err == nil {
			buildTime = time.Unix(unix, 0).UTC().Format(time.RFC3339)
		} else if parsed, err := time.Parse(time.RFC3339, BuildTimestamp); err == nil {
			buildTime = parsed.UTC().Format(time.RFC3339)
		}
	}
	version := ProductVersion
	if version == "" {
		version = DevelopmentVersion
	}
	return VersionOutput{
		Version:    version,
		CommitHash: CommitHash,
		BuildTime:  buildTime,
	}
}

// Package info carries build metadata stamped with -ldflags and a per-process instance id.
package info

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

var (
	Version    = "0.0.0"
	Dist       = "1"
	GitRev     = "000000"
	BuildTime  = "2000-01-01_00:00:00"
	InstanceID = uuid.New().String()
)

var EnvMode = "development"

func init() {
	if mode := os.Getenv("MD_MODE"); mode != "" {
		EnvMode = mode
	}
}

// Build is the metadata reported by the health endpoint.
type Build struct {
	Version    string `json:"version"`
	GitRev     string `json:"gitRev"`
	BuildTime  string `json:"buildTime"`
	InstanceID string `json:"instanceID"`
	Mode       string `json:"mode"`
}

func Current() Build {
	return Build{
		Version:    Version + "-" + Dist,
		GitRev:     GitRev,
		BuildTime:  BuildTime,
		InstanceID: InstanceID,
		Mode:       EnvMode,
	}
}

func (b Build) String() string {
	return fmt.Sprintf("metaldesk %s (%s, built %s) instance:%s mode:%s",
		b.Version, b.GitRev, b.BuildTime, b.InstanceID, b.Mode)
}

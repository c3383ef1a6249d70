// Package device describes the host the toolkit runs on.
package device

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kcaldas/devkit/pkg/version"
)

// Info is the device section of reports and error records.
type Info struct {
	ID         string `json:"deviceId"`
	Name       string `json:"name"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	Version    string `json:"version"`
	GoVersion  string `json:"goVersion"`
	NumCPU     int    `json:"numCPU"`
	IsEmulator bool   `json:"isEmulator"`
}

// Location is an optional coarse position attached to telemetry.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Identity is supplied by the host application to tag telemetry.
type Identity interface {
	UserID() string
	SessionID() string
	Location() *Location
}

// StaticIdentity is an Identity with fixed values.
type StaticIdentity struct {
	User    string
	Session string
	Where   *Location
}

func (s StaticIdentity) UserID() string      { return s.User }
func (s StaticIdentity) SessionID() string   { return s.Session }
func (s StaticIdentity) Location() *Location { return s.Where }

// Collector gathers Info. The device ID is generated once per collector.
type Collector struct {
	once sync.Once
	id   string

	hostname   func() (string, error)
	inEmulator func() bool
}

// NewCollector returns a collector for the current process.
func NewCollector() *Collector {
	return &Collector{
		hostname:   os.Hostname,
		inEmulator: runningInContainer,
	}
}

// Info returns the current device description.
func (c *Collector) Info() Info {
	c.once.Do(func() { c.id = uuid.NewString() })

	name, err := c.hostname()
	if err != nil {
		name = "unknown"
	}
	return Info{
		ID:         c.id,
		Name:       name,
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		Version:    version.GetVersion(),
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		IsEmulator: c.inEmulator(),
	}
}

// runningInContainer is the closest thing a server process has to an
// emulator flag.
func runningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	s := string(data)
	return strings.Contains(s, "docker") || strings.Contains(s, "kubepods") || strings.Contains(s, "containerd")
}

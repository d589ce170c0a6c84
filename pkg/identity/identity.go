package identity

import (
	"os"

	"github.com/shirou/gopsutil/host"

	"github.com/benmeehan/fbx-agent/pkg/fbxerr"
)

const (
	DefaultAppID   = "fbxagent"
	DefaultAppName = "fbx-agent"
)

// Version is the application version reported by the default descriptor.
var Version = "1.0.0"

// Descriptor is the identity block an application presents to the appliance
// to request authorization. All four fields are required.
type Descriptor struct {
	AppID      string `json:"app_id" yaml:"app_id"`
	AppName    string `json:"app_name" yaml:"app_name"`
	AppVersion string `json:"app_version" yaml:"app_version"`
	DeviceName string `json:"device_name" yaml:"device_name"`
}

// IsValid reports whether every required field is present.
func (d Descriptor) IsValid() bool {
	return d.AppID != "" && d.AppName != "" && d.AppVersion != "" && d.DeviceName != ""
}

// Validate returns an invalid_descriptor error when IsValid is false.
func (d Descriptor) Validate() error {
	if !d.IsValid() {
		return fbxerr.NewInvalidDescriptor("invalid application descriptor")
	}
	return nil
}

// Matches reports whether d is exactly the descriptor other, field by field.
// A stored credential is only reused when its descriptor matches.
func (d Descriptor) Matches(other Descriptor) bool {
	return d == other
}

// DefaultDescriptor returns the descriptor used when the caller provides none.
// The device name is the host name of the machine.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		AppID:      DefaultAppID,
		AppName:    DefaultAppName,
		AppVersion: Version,
		DeviceName: hostName(),
	}
}

func hostName() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return DefaultAppName
}

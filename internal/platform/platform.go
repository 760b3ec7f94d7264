// Package platform decides which runtime files a bundle needs besides the
// discovered modules, depending on the target operating system.
package platform

import (
	"runtime"
	"strings"
)

type Kind int

const (
	Unsupported Kind = iota
	Windows
	Cygwin

	kindCount
)

func (k Kind) String() string {
	switch k {
	case Windows:
		return "windows"
	case Cygwin:
		return "cygwin"
	default:
		return "unsupported"
	}
}

// Platform is a target platform. ID keeps the identifier it was parsed from.
type Platform struct {
	Kind Kind
	ID   string
}

// Parse maps a platform identifier such as sys.platform or GOOS to a Platform.
func Parse(id string) Platform {
	norm := strings.ToLower(strings.TrimSpace(id))
	switch {
	case norm == "win32" || norm == "windows" || norm == "win64":
		return Platform{Kind: Windows, ID: id}
	case strings.HasPrefix(norm, "cygwin"):
		return Platform{Kind: Cygwin, ID: id}
	default:
		return Platform{Kind: Unsupported, ID: id}
	}
}

// Current returns the platform pyfreeze itself runs on.
func Current() Platform {
	return Parse(runtime.GOOS)
}

// ExecSuffix is the file name suffix of executables on p.
func (p Platform) ExecSuffix() string {
	if p.Kind == Windows || p.Kind == Cygwin {
		return ".exe"
	}
	return ""
}

func (p Platform) String() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Kind.String()
}

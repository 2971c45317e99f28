// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package interp identifies the Python interpreter a resolve is being
// performed for: its implementation, version, ABI/platform tags, and the
// PEP 508 environment it presents to marker evaluation.
package interp

import (
	"context"
	"encoding/base64"
	"fmt"
	"runtime"

	"github.com/wickman/pex/pkg/pep508"
	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/python"
	"github.com/wickman/pex/pkg/python/pep345"
	"github.com/wickman/pex/pkg/python/pep425"
	"github.com/wickman/pex/pkg/python/pyinspect"
)

// Identity is everything a resolve needs to know about a target Python
// interpreter: enough to filter packages by compatibility tag, to decide
// Requires-Python satisfaction, and to evaluate PEP 508 markers.
type Identity struct {
	Implementation string // e.g. "cp" for CPython, "pp" for PyPy
	VersionInfo    python.VersionInfo
	MagicNumber    []byte
	Tags           pep425.Installer
	Platform       string // e.g. "linux_x86_64"; feeds CompatContext.PlatformTag
}

// Discover probes a live interpreter by running cmdline (e.g. "python3") as
// a subprocess and inspecting its sys/packaging state. This is the only
// path that actually executes Python; everything else in this package
// builds an Identity by hand, which is the path tests should prefer.
func Discover(ctx context.Context, cmdline ...string) (*Identity, error) {
	info, err := pyinspect.Dynamic(ctx, cmdline...)
	if err != nil {
		return nil, fmt.Errorf("interp.Discover: %w", err)
	}
	magic, err := base64.StdEncoding.DecodeString(info.MagicNumberB64)
	if err != nil {
		return nil, fmt.Errorf("interp.Discover: decoding magic number: %w", err)
	}
	impl := "cp"
	if len(info.Tags) > 0 {
		impl = implementationOf(info.Tags[0].Python)
	}
	return &Identity{
		Implementation: impl,
		VersionInfo:    info.VersionInfo,
		MagicNumber:    magic,
		Tags:           info.Tags,
		Platform:       PlatformTag(),
	}, nil
}

// New builds an Identity directly, bypassing any subprocess probe. This is
// the common path in tests, and in contexts (cross-compilation, sandboxes
// without a Python install) where shelling out to a real interpreter isn't
// possible.
func New(impl string, versionInfo python.VersionInfo, tags pep425.Installer, platform string) *Identity {
	return &Identity{
		Implementation: impl,
		VersionInfo:    versionInfo,
		Tags:           tags,
		Platform:       platform,
	}
}

// Satisfies reports whether this interpreter's version satisfies a
// Requires-Python specifier such as ">=3.7,<4".
func (id *Identity) Satisfies(requiresPython string) (bool, error) {
	if requiresPython == "" {
		return true, nil
	}
	ver, err := id.VersionInfo.PEP440()
	if err != nil {
		return false, fmt.Errorf("interp.Identity.Satisfies: %w", err)
	}
	return pep345.HaveRequiredPython(*ver, requiresPython)
}

// CompatContext builds the compatibility context a pkgfile.Package's
// Compatible method filters against.
func (id *Identity) CompatContext() pkgfile.CompatContext {
	return pkgfile.CompatContext{
		PythonTag:   fmt.Sprintf("%d.%d", id.VersionInfo.Major, id.VersionInfo.Minor),
		PlatformTag: id.Platform,
		Tags:        id.Tags,
	}
}

// Environment builds the PEP 508 marker-evaluation environment for this
// interpreter, per the variable set PEP 508 defines.
func (id *Identity) Environment() pep508.Environment {
	ver, err := id.VersionInfo.PEP440()
	full := fmt.Sprintf("%d.%d.%d", id.VersionInfo.Major, id.VersionInfo.Minor, id.VersionInfo.Micro)
	if err == nil {
		full = ver.String()
	}
	return pep508.Environment{
		"python_version":                 fmt.Sprintf("%d.%d", id.VersionInfo.Major, id.VersionInfo.Minor),
		"python_full_version":            full,
		"implementation_name":            implementationName(id.Implementation),
		"implementation_version":         full,
		"platform_python_implementation": platformImplementationName(id.Implementation),
		"os_name":                        osName(),
		"sys_platform":                   sysPlatform(),
		"platform_machine":               runtime.GOARCH,
		"platform_system":                platformSystem(),
		"platform_release":               "",
		"platform_version":               "",
	}
}

func implementationOf(pyTag string) string {
	for i, r := range pyTag {
		if r >= '0' && r <= '9' {
			return pyTag[:i]
		}
	}
	return pyTag
}

func implementationName(impl string) string {
	switch impl {
	case "cp":
		return "cpython"
	case "pp":
		return "pypy"
	case "ip":
		return "ironpython"
	case "jy":
		return "jython"
	default:
		return impl
	}
}

func platformImplementationName(impl string) string {
	switch impl {
	case "cp":
		return "CPython"
	case "pp":
		return "PyPy"
	case "ip":
		return "IronPython"
	case "jy":
		return "Jython"
	default:
		return impl
	}
}

// PlatformTag derives a PEP 425-style platform tag from the host GOOS/GOARCH,
// overridable by a caller that knows better (e.g. a cross-compilation target
// or a --platform flag on the CLI).
func PlatformTag() string {
	arch := goArchToPEP425(runtime.GOARCH)
	switch runtime.GOOS {
	case "linux":
		return "linux_" + arch
	case "darwin":
		return "macosx_10_9_" + arch
	case "windows":
		if arch == "x86_64" {
			return "win_amd64"
		}
		return "win32"
	default:
		return runtime.GOOS + "_" + arch
	}
}

func goArchToPEP425(arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	default:
		return arch
	}
}

func sysPlatform() string {
	switch runtime.GOOS {
	case "linux":
		return "linux"
	case "darwin":
		return "darwin"
	case "windows":
		return "win32"
	default:
		return runtime.GOOS
	}
}

func osName() string {
	switch runtime.GOOS {
	case "windows":
		return "nt"
	default:
		return "posix"
	}
}

func platformSystem() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	default:
		return runtime.GOOS
	}
}

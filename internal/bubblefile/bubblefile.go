// Package bubblefile parses and represents a bubble file identifier: a
// 32-byte directory id (or the reserved root sentinel), optionally
// followed by a POSIX path segment (spec §2.2, §4.2).
package bubblefile

import (
	"errors"
	"strings"

	"github.com/bubbleprotocol/guardian/internal/permission"
	"github.com/bubbleprotocol/guardian/internal/validate"
)

// errMalformed is returned by Parse when the input is not a valid root
// sentinel/32-byte hex id, optionally followed by a valid POSIX segment.
// The guardian package wraps it into a bubbleerr.InvalidMethodParams.
var errMalformed = errors.New("malformed file")

// ErrMalformed is the sentinel Parse returns for any structurally invalid
// input; callers can compare with errors.Is.
var ErrMalformed = errMalformed

// RootSentinel is the reserved identifier for a bubble's root directory
// (spec §6).
const RootSentinel = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Filename is a parsed bubble file identifier. The zero value is not
// valid; construct with Parse.
type Filename struct {
	permissionedPart string
	pathExtension    string
	hasExtension     bool
	permissions      *permission.Bits
}

// Parse parses raw into a Filename. An empty string is treated as the
// root sentinel. Returns an error if the permissioned part is neither the
// root sentinel nor a 32-byte hex id, or if a path extension is present
// but malformed.
func Parse(raw string) (*Filename, error) {
	if raw == "" {
		raw = RootSentinel
	}

	left, right, hasSlash := cutFirstSlash(raw)

	permissionedPart, ok := normalizePermissionedPart(left)
	if !ok {
		return nil, errMalformed
	}

	f := &Filename{permissionedPart: permissionedPart}
	if hasSlash {
		if !validate.IsPosixSegment(right) {
			return nil, errMalformed
		}
		f.pathExtension = right
		f.hasExtension = true
	}
	return f, nil
}

func cutFirstSlash(s string) (left, right string, hasSlash bool) {
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

func normalizePermissionedPart(s string) (string, bool) {
	if strings.EqualFold(s, RootSentinel) {
		return RootSentinel, true
	}
	return validate.NormalizeFileID(s)
}

// IsRoot reports whether the filename targets the bubble's root directory
// itself — the root sentinel with no path extension.
func (f *Filename) IsRoot() bool {
	return f.permissionedPart == RootSentinel && !f.hasExtension
}

// IsDirectory reports whether the filename targets a bare permissioned
// part (no path extension) — structural, independent of any attached
// permission bits. Contrast permission.Bits.IsDirectory, the ACC's own
// classification of the id.
func (f *Filename) IsDirectory() bool { return !f.hasExtension }

// IsFile reports whether the filename carries a path extension.
func (f *Filename) IsFile() bool { return f.hasExtension }

// PermissionedPart returns the lowercase 32-byte hex id (or root
// sentinel) that ACC permissions are evaluated against.
func (f *Filename) PermissionedPart() string { return f.permissionedPart }

// PathExtension returns the path segment following the permissioned
// part, or "" if none is present.
func (f *Filename) PathExtension() string { return f.pathExtension }

// FullFilename returns the canonical lowercased "dirId[/segment]" form.
func (f *Filename) FullFilename() string {
	if f.hasExtension {
		return f.permissionedPart + "/" + f.pathExtension
	}
	return f.permissionedPart
}

// SetPermissions attaches the ACC-resolved permission bits for this
// filename's permissioned part, transitioning it into a permissioned
// state for IsValid.
func (f *Filename) SetPermissions(p permission.Bits) { f.permissions = &p }

// Permissions returns the attached permission bits, or nil if
// SetPermissions has not been called yet.
func (f *Filename) Permissions() *permission.Bits { return f.permissions }

// IsValid reports whether the filename is structurally valid. Before
// SetPermissions it is always true (Parse already rejected malformed
// input); afterwards it additionally requires that a path extension is
// only present when the permissioned part is ACC-flagged as a directory
// (spec §4.2, §8: "a request with both directory and path-extension
// parts is valid only if ... the directory-bit is set on the
// permissioned part").
func (f *Filename) IsValid() bool {
	if f.permissions == nil {
		return true
	}
	if f.hasExtension && !f.permissions.IsDirectory() {
		return false
	}
	return true
}

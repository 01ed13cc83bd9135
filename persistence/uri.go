package persistence

import (
	"fmt"
	"strings"
)

// ProjectPlaceholder in a storage URI is replaced with the project name once
// it is known, so one configured URI serves every project.
const ProjectPlaceholder = "${project}"

// URI is a parsed storage URI. Two forms are accepted: the opaque form
// "scheme:path" and the address form "scheme://address". Location reports
// whichever part was present.
type URI struct {
	Raw     string
	Scheme  string
	Path    string
	Address string
}

// ParseURI splits a storage URI into scheme and location.
func ParseURI(raw string) (URI, error) {
	i := strings.Index(raw, ":")
	if i <= 0 {
		return URI{}, fmt.Errorf("uri %q: missing scheme", raw)
	}

	uri := URI{Raw: raw, Scheme: raw[:i]}
	rest := raw[i+1:]
	if after, ok := strings.CutPrefix(rest, "//"); ok {
		uri.Address = after
	} else {
		uri.Path = rest
	}
	return uri, nil
}

// Location reports the part of the URI after the scheme, whichever form the
// URI used.
func (u URI) Location() string {
	if u.Path != "" {
		return u.Path
	}
	return u.Address
}

// SubstituteProject replaces the project placeholder in a raw URI.
func SubstituteProject(raw, project string) string {
	if project == "" {
		return raw
	}
	return strings.ReplaceAll(raw, ProjectPlaceholder, project)
}

// Package pathfilter classifies local and Remote file paths into the
// buckets the write/sync core needs to tell apart (spec §2 item 4, §4.9):
// breadcrumb paths that must never touch the Remote, synthetic files the
// Remote manages itself, editor/tooling directories, local-only config, and
// everything else that round-trips normally.
//
// Grounded on cmd/git-preflight/git-preflight.go's match() glob matching,
// generalized from "does this changed file trigger this hook" to "which
// bucket does this path fall into".
package pathfilter

import (
	"path"
	"strings"
)

// Class is one of the mutually exclusive path buckets.
type Class int

const (
	RemoteCompatible Class = iota
	Breadcrumb
	SystemSynthetic
	DevDir
	LocalConfig
)

func (c Class) String() string {
	switch c {
	case Breadcrumb:
		return "breadcrumb"
	case SystemSynthetic:
		return "system-synthetic"
	case DevDir:
		return "dev-dir"
	case LocalConfig:
		return "local-config"
	default:
		return "remote-compatible"
	}
}

var devDirs = []string{"node_modules/", ".idea/", ".vscode/"}

var localConfigNames = map[string]bool{
	".clasp.json":          true,
	".claspignore":         true,
	".rsync-manifest.json": true,
}

// Classify returns the single bucket p belongs to. p is expected relative
// to a working directory root, using forward slashes.
func Classify(p string) Class {
	p = strings.TrimPrefix(p, "./")
	if IsBreadcrumb(p) {
		return Breadcrumb
	}
	if isSystemSynthetic(p) {
		return SystemSynthetic
	}
	for _, d := range devDirs {
		if p == strings.TrimSuffix(d, "/") || strings.HasPrefix(p, d) {
			return DevDir
		}
	}
	if localConfigNames[path.Base(p)] {
		return LocalConfig
	}
	return RemoteCompatible
}

// IsBreadcrumb reports whether p has ".git" as a path segment at any depth
// (spec glossary: Breadcrumb), regardless of where in the path it occurs.
func IsBreadcrumb(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".git" {
			return true
		}
	}
	return false
}

func isSystemSynthetic(p string) bool {
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if base == "appsscript" {
		return true
	}
	if strings.HasPrefix(p, "common-js/") {
		return true
	}
	if strings.HasPrefix(base, "__mcp_exec") {
		return true
	}
	return false
}

// ExcludeForRsync reports whether p should be skipped entirely when listing
// local files for the Rsync Engine's diff (spec §4.5 step 1): breadcrumbs
// plus the fixed exclusion list plus any caller-supplied patterns.
func ExcludeForRsync(p string, extraPatterns []string) bool {
	if IsBreadcrumb(p) {
		return true
	}
	switch Classify(p) {
	case DevDir, LocalConfig:
		return true
	}
	base := path.Base(p)
	for _, pat := range extraPatterns {
		if ok, _ := path.Match(pat, base); ok {
			return true
		}
		if ok, _ := path.Match(pat, p); ok {
			return true
		}
	}
	return false
}

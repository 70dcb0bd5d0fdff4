// Package wrapper implements the reversible CommonJS-style transform that
// crosses the local<->Remote boundary (spec §4.3). It is pure: no I/O, no
// dependency on the Remote SDK or the filesystem, so the round-trip law
// (P4) can be tested directly against strings.
package wrapper

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	prologue = "function _main(module, exports, require){"
	epilogue = "}\n__defineModule__(_main"
	closer   = ");"
)

// Options are the module-registration options preserved across round-trips.
type Options struct {
	LoadNow          bool     `json:"loadNow,omitempty"`
	HoistedFunctions []string `json:"hoistedFunctions,omitempty"`
}

// IsZero reports whether o carries no information worth serializing, so
// Wrap can omit the options argument entirely rather than emit "{}".
func (o *Options) IsZero() bool {
	return o == nil || (!o.LoadNow && len(o.HoistedFunctions) == 0)
}

// Wrap produces the stored (wrapped) form of userText. moduleName is
// accepted for API symmetry with callers that key wrapping by file name,
// but the wrapped shape itself does not embed the name (the Remote infers
// module identity from the file's own name).
func Wrap(userText string, moduleName string, opts *Options) string {
	_ = moduleName
	var buf strings.Builder
	buf.WriteString(prologue)
	buf.WriteString(userText)
	buf.WriteString(epilogue)
	if !opts.IsZero() {
		data, err := json.Marshal(opts)
		if err == nil {
			buf.WriteString(", ")
			buf.Write(data)
		}
	}
	buf.WriteString(closer)
	return buf.String()
}

// Unwrap recovers the user text and options from stored content. If the
// known prologue/epilogue is absent, the text is returned unchanged with a
// nil Options, per spec §4.3.
func Unwrap(stored string) (userText string, opts *Options) {
	if !strings.HasPrefix(stored, prologue) {
		return stored, nil
	}
	body := stored[len(prologue):]
	epIdx := strings.LastIndex(body, epilogue)
	if epIdx < 0 {
		return stored, nil
	}
	userText = body[:epIdx]
	rest := body[epIdx+len(epilogue):]
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ";")
	rest = strings.TrimSuffix(rest, ")")
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ","))
	if rest == "" {
		return userText, nil
	}
	var o Options
	if err := json.Unmarshal([]byte(rest), &o); err != nil {
		return userText, nil
	}
	return userText, &o
}

// IsWrapEligible implements the wrap-eligibility predicate from spec §4.3 /
// §3 (kind ServerScript, not in the system-synthetic set, not a git
// breadcrumb path). kind is compared by the caller; this helper only knows
// about names, since that's all the predicate needs beyond kind.
func IsWrapEligible(name string, isServerScript bool, isBreadcrumb bool) bool {
	if !isServerScript || isBreadcrumb {
		return false
	}
	if name == "appsscript" {
		return false
	}
	if strings.HasPrefix(name, "common-js/") {
		return false
	}
	if strings.HasPrefix(name, "__mcp_exec") {
		return false
	}
	return true
}

// String renders Options for debugging/logging (e.g. pipeline hint text).
func (o *Options) String() string {
	if o.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("{loadNow:%v hoistedFunctions:%v}", o.LoadNow, o.HoistedFunctions)
}

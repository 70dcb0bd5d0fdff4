package wrapper

import "testing"

func TestWrapExactShapeNoOptions(t *testing.T) {
	got := Wrap("function f(){return 1}", "Utils", nil)
	want := "function _main(module, exports, require){function f(){return 1}}\n__defineModule__(_main);"
	if got != want {
		t.Fatalf("Wrap() = %q, want %q", got, want)
	}
}

func TestWrapWithOptions(t *testing.T) {
	opts := &Options{LoadNow: true, HoistedFunctions: []string{"foo", "bar"}}
	got := Wrap("var x = 1;", "Mod", opts)
	if got[:len(prologue)] != prologue {
		t.Fatalf("missing prologue: %q", got)
	}
	userText, roundTripped := Unwrap(got)
	if userText != "var x = 1;" {
		t.Fatalf("roundtrip userText = %q", userText)
	}
	if roundTripped == nil || roundTripped.LoadNow != true || len(roundTripped.HoistedFunctions) != 2 {
		t.Fatalf("roundtrip options = %+v", roundTripped)
	}
}

func TestRoundTripLaw(t *testing.T) {
	cases := []struct {
		userText string
		opts     *Options
	}{
		{"return 1", nil},
		{"", &Options{}},
		{"multi\nline\nbody", &Options{LoadNow: false, HoistedFunctions: []string{"a"}}},
		{"nested }{ braces", &Options{LoadNow: true}},
	}
	for _, c := range cases {
		wrapped := Wrap(c.userText, "name", c.opts)
		gotText, gotOpts := Unwrap(wrapped)
		if gotText != c.userText {
			t.Errorf("Unwrap(Wrap(%q)).userText = %q", c.userText, gotText)
		}
		if c.opts.IsZero() {
			if gotOpts != nil {
				t.Errorf("expected nil options round-trip for zero options, got %+v", gotOpts)
			}
			continue
		}
		if gotOpts == nil || gotOpts.LoadNow != c.opts.LoadNow || len(gotOpts.HoistedFunctions) != len(c.opts.HoistedFunctions) {
			t.Errorf("Unwrap(Wrap(...)) options = %+v, want %+v", gotOpts, c.opts)
		}
	}
}

func TestUnwrapAbsentPrologueReturnsUnchanged(t *testing.T) {
	stored := "plain text, no wrapper here"
	text, opts := Unwrap(stored)
	if text != stored || opts != nil {
		t.Fatalf("Unwrap(unwrapped) = (%q, %+v), want unchanged/nil", text, opts)
	}
}

func TestWrapUnwrapByteEqualForStoredContent(t *testing.T) {
	// P4's second clause: wrap(unwrap(stored)) is byte-equal to stored for
	// wrap-eligible stored content produced by this system.
	stored := Wrap("console.log(1)", "X", &Options{LoadNow: true})
	userText, opts := Unwrap(stored)
	again := Wrap(userText, "X", opts)
	if again != stored {
		t.Fatalf("wrap(unwrap(stored)) = %q, want %q", again, stored)
	}
}

func TestIsWrapEligible(t *testing.T) {
	cases := []struct {
		name           string
		isServerScript bool
		isBreadcrumb   bool
		want           bool
	}{
		{"Utils", true, false, true},
		{"appsscript", true, false, false},
		{"common-js/foo", true, false, false},
		{"__mcp_exec_helper", true, false, false},
		{".git/config", true, true, false},
		{"index", false, false, false},
	}
	for _, c := range cases {
		got := IsWrapEligible(c.name, c.isServerScript, c.isBreadcrumb)
		if got != c.want {
			t.Errorf("IsWrapEligible(%q, %v, %v) = %v, want %v", c.name, c.isServerScript, c.isBreadcrumb, got, c.want)
		}
	}
}

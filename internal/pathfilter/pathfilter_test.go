package pathfilter

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want Class
	}{
		{"Utils", RemoteCompatible},
		{".git/config", Breadcrumb},
		{"nested/.git/HEAD", Breadcrumb},
		{"appsscript", SystemSynthetic},
		{"appsscript.json", SystemSynthetic},
		{"common-js/index", SystemSynthetic},
		{"__mcp_exec_runner", SystemSynthetic},
		{"node_modules/foo/index.js", DevDir},
		{".idea/workspace.xml", DevDir},
		{".clasp.json", LocalConfig},
		{".rsync-manifest.json", LocalConfig},
	}
	for _, c := range cases {
		if got := Classify(c.path); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestExcludeForRsyncExtraPatterns(t *testing.T) {
	if !ExcludeForRsync("build/output.tmp", []string{"*.tmp"}) {
		t.Error("expected *.tmp pattern to exclude build/output.tmp")
	}
	if ExcludeForRsync("Utils.gs", []string{"*.tmp"}) {
		t.Error("did not expect Utils.gs to be excluded")
	}
	if !ExcludeForRsync(".git/HEAD", nil) {
		t.Error("breadcrumbs must always be excluded")
	}
}

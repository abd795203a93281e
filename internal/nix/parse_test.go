package nix

import (
	"reflect"
	"testing"
)

func TestParseJSONStorePaths(t *testing.T) {
	stdout := `[{"drvPath":"/nix/store/aaa.drv","outputs":{"out":"/nix/store/bbb-hello","dev":"/nix/store/ccc-hello-dev"}}]`
	got := parseJSONStorePaths(stdout)
	want := []string{"/nix/store/ccc-hello-dev", "/nix/store/bbb-hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseJSONStorePaths = %v, want %v", got, want)
	}
}

func TestParseJSONStorePaths_NotJSON(t *testing.T) {
	if got := parseJSONStorePaths("not json"); got != nil {
		t.Errorf("parseJSONStorePaths = %v, want nil", got)
	}
}

func TestParseStorePaths(t *testing.T) {
	stdout := "warning: something\n/nix/store/abc-tool\n  /nix/store/def-lib\nnot a path\n"
	got := parseStorePaths(stdout)
	want := []string{"/nix/store/abc-tool", "/nix/store/def-lib"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseStorePaths = %v, want %v", got, want)
	}
}

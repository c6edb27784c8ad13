package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames guards the key names that log queries depend on.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Language", KeyLanguage, "python", Language("python")},
		{"Topic", KeyTopic, "Variables", Topic("Variables")},
		{"CacheKey", KeyCacheKey, "all_languages", CacheKey("all_languages")},
		{"Operation", KeyOperation, "search", Operation("search")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"UserID", KeyUserID, "default", UserID("default")},
		{"Setting", KeySetting, "ui.theme", Setting("ui.theme")},
		{"Job", KeyJob, "backup", Job("backup")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(1500 * time.Microsecond)
	if attr.Key != KeyDurationMS {
		t.Fatalf("Duration key mismatch: %s", attr.Key)
	}
	if got := attr.Value.Float64(); got != 1.5 {
		t.Fatalf("expected 1.5ms, got %v", got)
	}
}

func TestErrorHelper(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Fatalf("expected empty error string, got %s", got)
	}
	if got := Error(errors.New("err-test")).Value.String(); got != "err-test" {
		t.Fatalf("expected 'err-test', got %s", got)
	}
}

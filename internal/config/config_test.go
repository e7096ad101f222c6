package config

import (
	"testing"
	"time"
)

func TestEnvFallsBackWhenUnset(t *testing.T) {
	t.Setenv("MEDIASERVER_TEST_STRING", "")
	if got := env("MEDIASERVER_TEST_STRING", "fallback"); got != "fallback" {
		t.Fatalf("env = %q, want fallback", got)
	}
}

func TestEnvIntParsesOrFallsBack(t *testing.T) {
	t.Setenv("MEDIASERVER_TEST_INT", "9090")
	if got := envInt("MEDIASERVER_TEST_INT", 8080); got != 9090 {
		t.Fatalf("envInt = %d, want 9090", got)
	}
	t.Setenv("MEDIASERVER_TEST_INT", "not-a-number")
	if got := envInt("MEDIASERVER_TEST_INT", 8080); got != 8080 {
		t.Fatalf("envInt with invalid value = %d, want fallback 8080", got)
	}
}

func TestEnvBoolAcceptsTrueAndOne(t *testing.T) {
	t.Setenv("MEDIASERVER_TEST_BOOL", "true")
	if !envBool("MEDIASERVER_TEST_BOOL", false) {
		t.Fatal("envBool(\"true\") should be true")
	}
	t.Setenv("MEDIASERVER_TEST_BOOL", "1")
	if !envBool("MEDIASERVER_TEST_BOOL", false) {
		t.Fatal("envBool(\"1\") should be true")
	}
	t.Setenv("MEDIASERVER_TEST_BOOL", "nope")
	if envBool("MEDIASERVER_TEST_BOOL", false) {
		t.Fatal("envBool(\"nope\") should be false")
	}
}

func TestEnvDurationParsesGoDuration(t *testing.T) {
	t.Setenv("MEDIASERVER_TEST_DURATION", "72h")
	if got := envDuration("MEDIASERVER_TEST_DURATION", time.Hour); got != 72*time.Hour {
		t.Fatalf("envDuration = %v, want 72h", got)
	}
}

func TestEnvListSplitsOnComma(t *testing.T) {
	t.Setenv("MEDIASERVER_TEST_LIST", ".mp4,.mkv,.avi")
	got := envList("MEDIASERVER_TEST_LIST", []string{".mp4"})
	want := []string{".mp4", ".mkv", ".avi"}
	if len(got) != len(want) {
		t.Fatalf("envList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("envList = %v, want %v", got, want)
		}
	}
}

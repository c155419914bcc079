package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("CHROME_TEST_SET", " 8080 ")
	t.Setenv("CHROME_TEST_BLANK", "   ")

	if got := Get("CHROME_TEST_SET", "5001"); got != "8080" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := Get("CHROME_TEST_BLANK", "5001"); got != "5001" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	if got := Get("CHROME_TEST_MISSING", "json"); got != "json" {
		t.Fatalf("missing value should fall back, got %q", got)
	}
}

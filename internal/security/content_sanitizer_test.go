package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は警告本文で使われるタグが通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{"段落", "<p>Exercise a high degree of caution.</p>", []string{"<p>Exercise a high degree of caution.</p>"}},
		{"箇条書き", "<ul><li>Avoid crowds</li></ul>", []string{"<ul>", "<li>Avoid crowds</li>", "</ul>"}},
		{"小見出し", "<h3>Safety</h3><h4>Crime</h4>", []string{"<h3>Safety</h3>", "<h4>Crime</h4>"}},
		{"強調", "<strong>Do not travel</strong> <b>now</b>", []string{"<strong>Do not travel</strong>", "<b>now</b>"}},
		{"改行", "line1<br>line2", []string{"<br>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_RemovesDangerousContent はスクリプト等が除去されることを検証する。
func TestSanitize_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		notContain []string
	}{
		{"script", `<p>ok</p><script>alert(1)</script>`, []string{"<script", "alert(1)"}},
		{"iframe", `<iframe src="https://evil.example.com"></iframe>`, []string{"<iframe"}},
		{"style", `<style>body{}</style><p>x</p>`, []string{"<style"}},
		{"onclick", `<p onclick="steal()">x</p>`, []string{"onclick", "steal"}},
		{"javascriptリンク", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"httpリンク", `<a href="http://insecure.example.com">x</a>`, []string{"http://insecure.example.com"}},
		{"img", `<img src="https://example.com/a.png">`, []string{"<img"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, bad := range tt.notContain {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

// TestSanitize_AnchorAttributes はhttpsリンクにtargetとrelが付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://embassy.example.com">Embassy</a>`)
	for _, want := range []string{`href="https://embassy.example.com"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, expected to contain %q", got, want)
		}
	}
}

func TestSanitize_EmptyAndIdempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}

	input := `<p>Level 2 <a href="https://example.com">details</a></p><script>x</script>`
	first := sanitizer.Sanitize(input)
	if second := sanitizer.Sanitize(first); second != first {
		t.Errorf("Sanitize is not idempotent: %q != %q", second, first)
	}
}

func TestPlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"タグ除去", "<p>Reconsider <strong>travel</strong></p>", "Reconsider travel"},
		{"エンティティ復元", "Crime &amp; unrest", "Crime & unrest"},
		{"空白を詰める", "  line1\n\n  line2  ", "line1 line2"},
		{"script除去", "safe<script>alert(1)</script>", "safe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}

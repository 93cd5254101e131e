package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient(t *testing.T) {
	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// httptestサーバーはループバックで待ち受けるため接続できないこと
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer ts.Close()

	if _, err := NewSSRFGuard().NewSafeClient(5 * time.Second).Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	allowed := []string{
		"https://lh3.googleusercontent.com/a/photo.jpg",
		"http://cdn.example.org/avatar.png",
		"https://93.184.216.34/avatar.png",
	}
	for _, u := range allowed {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}

	blocked := []struct{ name, url string }{
		{"空文字列", ""},
		{"スキームなし", "not-a-url"},
		{"file", "file:///etc/passwd"},
		{"ftp", "ftp://example.com/a.png"},
		{"10/8", "http://10.0.0.1/a.png"},
		{"172.16/12", "http://172.31.255.255/a.png"},
		{"192.168/16", "http://192.168.1.100/a.png"},
		{"ループバック", "http://127.0.0.1/a.png"},
		{"localhost", "http://LOCALHOST/a.png"},
		{"サブドメインlocalhost", "http://app.localhost/a.png"},
		{"メタデータIP", "http://169.254.169.254/computeMetadata/v1/"},
		{"IPv6ループバック", "http://[::1]/a.png"},
		{"IPv4射影", "http://[::ffff:127.0.0.1]/a.png"},
		{"ゼロアドレス", "http://0.0.0.0/a.png"},
		{"CGNAT", "http://100.64.0.1/a.png"},
	}
	for _, tt := range blocked {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) should fail", tt.url)
			}
		})
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}

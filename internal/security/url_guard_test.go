package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewURLGuard はURLGuardの生成をテストする。
func TestNewURLGuard(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)
	if guard == nil {
		t.Fatal("NewURLGuard() returned nil")
	}
	if guard.probeClient == nil {
		t.Fatal("expected probe client to be set")
	}
}

// TestProbeClientHasTransport はプローブクライアントにカスタムTransportが
// 設定されていることをテストする。safeurlはnet.DialerのControlフックで
// IPアドレス検証を行うため、標準のhttp.DefaultTransportではないことを確認する。
func TestProbeClientHasTransport(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	if guard.probeClient.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if guard.probeClient.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestProbeTarget_BlocksLoopback はループバックへの到達確認がブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestProbeTarget_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewURLGuard(5 * time.Second)

	err := guard.ProbeTarget(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address probe, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	publicURLs := []string{
		"https://example.com",
		"https://example.com/articles/123?ref=newsletter",
		"http://blog.example.org/post",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

// TestValidateURL_PrivateIP はプライベートIPアドレスの拒否をテストする。
func TestValidateURL_PrivateIP(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	privateURLs := []string{
		"http://10.0.0.1/admin",
		"http://10.255.255.255/",
		"http://172.16.0.1/",
		"http://172.31.255.255/",
		"http://192.168.0.1/router",
		"http://192.168.1.100/",
	}

	for _, u := range privateURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for private IP", u)
			}
		})
	}
}

// TestValidateURL_LoopbackAddress はループバックアドレスの拒否をテストする。
func TestValidateURL_LoopbackAddress(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	loopbackURLs := []string{
		"http://127.0.0.1/",
		"http://127.0.0.2/",
		"http://localhost/",
	}

	for _, u := range loopbackURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for loopback address", u)
			}
		})
	}
}

// TestValidateURL_MetadataIP はクラウドメタデータIPアドレスの拒否をテストする。
func TestValidateURL_MetadataIP(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	metadataURLs := []string{
		"http://169.254.169.254/latest/meta-data/",                         // AWS
		"http://169.254.169.254/metadata/instance?api-version=2021-02-01",  // Azure
		"http://169.254.169.254/computeMetadata/v1/",                       // GCP
	}

	for _, u := range metadataURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for metadata IP", u)
			}
		})
	}
}

// TestValidateURL_InvalidURL は無効なURLの検証が失敗することをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	invalidURLs := []string{
		"",
		"not-a-url",
		"ftp://example.com/file",
		"file:///etc/passwd",
		"javascript:alert(1)",
	}

	for _, u := range invalidURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for invalid URL", u)
			}
		})
	}
}

// TestValidateURL_IPv6Loopback はIPv6ループバックアドレスの拒否をテストする。
func TestValidateURL_IPv6Loopback(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	err := guard.ValidateURL("http://[::1]/")
	if err == nil {
		t.Error("ValidateURL(\"http://[::1]/\") should have returned error for IPv6 loopback")
	}
}

// TestValidateURL_ZeroAddress は0.0.0.0の拒否をテストする。
func TestValidateURL_ZeroAddress(t *testing.T) {
	guard := NewURLGuard(5 * time.Second)

	err := guard.ValidateURL("http://0.0.0.0/")
	if err == nil {
		t.Error("ValidateURL(\"http://0.0.0.0/\") should have returned error for zero address")
	}
}

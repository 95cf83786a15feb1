// Package security は短縮対象URLの安全性検証機能を提供する。
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLGuardService は短縮リンクの登録対象URLを検証するインターフェース。
// 短縮サービスはリダイレクトを発行するため、プライベートネットワークや
// クラウドメタデータを指すURLの登録を拒否する。
type URLGuardService interface {
	// ValidateURL はURLの安全性を静的に検証する。
	// スキーム、ホスト、IPアドレスの検証を行い、
	// 危険なURLの場合はエラーを返す。
	ValidateURL(rawURL string) error

	// ProbeTarget は登録対象URLへHEADリクエストを送り、到達可能性を確認する。
	// safeurlクライアントがDNS解決後のIPアドレスも検証するため、
	// DNS再バインディングでプライベートIPへ誘導するURLも弾かれる。
	ProbeTarget(ctx context.Context, rawURL string) error
}

// allowedSchemes は登録を許可するURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は登録を拒否するネットワーク範囲。
// パッケージ初期化時に1回だけパースし、ValidateURLでの検証に使用する。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// urlGuard はURLGuardServiceの実装。
type urlGuard struct {
	probeClient *http.Client
}

// NewURLGuard はURLGuardServiceの新しいインスタンスを生成する。
// timeoutは到達確認リクエストのタイムアウト。
// 到達確認にはsafeurlのクライアントを使う。net.DialerのControlフックで
// DNS解決後のIPアドレスが検証されるため、プライベートIP、ループバック、
// リンクローカル、メタデータIPへのリクエストが自動的にブロックされる。
func NewURLGuard(timeout time.Duration) *urlGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &urlGuard{
		probeClient: safeurl.Client(config).Client,
	}
}

// ValidateURL はURLの安全性を静的に検証する。
// DNS解決を伴わない事前チェックであり、リンク登録時に必ず呼ばれる。
// ホスト名がプライベートIPへ解決されるケースはProbeTarget側の
// Dialer検証で防止される。
func (g *urlGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// スキーム検証: http/httpsのみ許可
	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	// ホスト検証: 空ホストを拒否
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	// IPアドレスの場合: ブロック対象CIDRとの照合
	ip := net.ParseIP(host)
	if ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	// ホスト名の場合: localhost等の危険なホスト名を拒否
	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// ProbeTarget は登録対象URLへHEADリクエストを送り、到達可能性を確認する。
// 2xx-3xxを到達可能とみなす。405を返すサーバーがあるためHEAD拒否は許容する。
func (g *urlGuard) ProbeTarget(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := g.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("target unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
		return fmt.Errorf("target responded with status %d", resp.StatusCode)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}

var _ URLGuardService = (*urlGuard)(nil)

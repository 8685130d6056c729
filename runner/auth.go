package runner

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/perfgo/vrtgo/model"
)

// checkSession opens target and verifies the page holds at least one cookie
// for its host.
func checkSession(ctx context.Context, page Page, target string) error {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("invalid authentication check URL %q", target)
	}

	if _, err := page.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	for _, c := range cookies {
		if cookieMatchesHost(c, host) {
			return nil
		}
	}
	return fmt.Errorf("no session cookies for %s", host)
}

// cookieMatchesHost reports whether c was set for host, one of its parent
// domains or one of its subdomains.
func cookieMatchesHost(c model.Cookie, host string) bool {
	domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
	if domain == "" {
		return false
	}
	return domain == host ||
		strings.HasSuffix(host, "."+domain) ||
		strings.HasSuffix(domain, "."+host)
}

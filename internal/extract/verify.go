package extract

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// DefaultDNSServers are tried in order for MX lookups.
var DefaultDNSServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// EmailVerifier checks that an address's domain publishes MX records.
// Verdicts are cached per domain for the verifier's lifetime, so a run
// over hundreds of pages asks each mail provider once.
type EmailVerifier struct {
	servers  []string
	exchange func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error)

	mu    sync.Mutex
	cache map[string]bool
}

func NewEmailVerifier(servers []string) *EmailVerifier {
	if len(servers) == 0 {
		servers = DefaultDNSServers
	}
	client := &dns.Client{Timeout: 5 * time.Second}
	return &EmailVerifier{
		servers: servers,
		exchange: func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			resp, _, err := client.ExchangeContext(ctx, msg, server)
			return resp, err
		},
		cache: make(map[string]bool),
	}
}

// HasMX reports whether the domain of email publishes at least one MX
// record. Lookup failures on every configured server count as no.
func (v *EmailVerifier) HasMX(ctx context.Context, email string) bool {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	v.mu.Lock()
	verdict, hit := v.cache[domain]
	v.mu.Unlock()
	if hit {
		return verdict
	}

	verdict = v.lookup(ctx, domain)

	// A cancelled lookup says nothing about the domain.
	if ctx.Err() == nil {
		v.mu.Lock()
		v.cache[domain] = verdict
		v.mu.Unlock()
	}
	return verdict
}

func (v *EmailVerifier) lookup(ctx context.Context, domain string) bool {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	for _, server := range v.servers {
		resp, err := v.exchange(ctx, msg, server)
		if err != nil {
			zap.L().Debug("extract: mx lookup failed",
				zap.String("domain", domain),
				zap.String("server", server),
				zap.Error(err))
			continue
		}
		if resp != nil && resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
			return true
		}
	}
	return false
}

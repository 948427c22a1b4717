package aws

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

var roleARNRe = regexp.MustCompile(`^arn:aws:iam::\d{12}:role/.+$`)

// ValidateRoleARN checks that the ARN looks like a valid IAM role ARN.
func ValidateRoleARN(arn string) error {
	if !roleARNRe.MatchString(arn) {
		return fmt.Errorf("invalid IAM role ARN: %q", arn)
	}
	return nil
}

type cachedConfig struct {
	cfg       aws.Config
	expiresAt time.Time
}

// RoleConfigProvider hands out an AWS config per deployment environment. Each
// environment may map to its own account role; environments without a role use
// the base credentials. Sessions are refreshed before STS expiry.
type RoleConfigProvider struct {
	region  string
	profile string
	roles   map[domain.Environment]string

	mu    sync.RWMutex
	cache map[string]*cachedConfig

	// sessionDuration is the STS session length (default 1h).
	sessionDuration time.Duration
	// refreshBefore is how far ahead of expiry to refresh (default 5m).
	refreshBefore time.Duration

	now func() time.Time
}

// NewRoleConfigProvider validates the role ARNs and returns a provider.
func NewRoleConfigProvider(region, profile string, roles map[domain.Environment]string) (*RoleConfigProvider, error) {
	for env, arn := range roles {
		if err := ValidateRoleARN(arn); err != nil {
			return nil, fmt.Errorf("aws auth: environment %s: %w", env, err)
		}
	}
	return &RoleConfigProvider{
		region:          region,
		profile:         profile,
		roles:           roles,
		cache:           make(map[string]*cachedConfig),
		sessionDuration: time.Hour,
		refreshBefore:   5 * time.Minute,
		now:             time.Now,
	}, nil
}

func cacheKey(env domain.Environment, roleARN string) string {
	return string(env) + "|" + roleARN
}

// ForEnvironment returns the config used to read tables in env.
func (p *RoleConfigProvider) ForEnvironment(ctx context.Context, env domain.Environment) (aws.Config, error) {
	roleARN := p.roles[env]
	key := cacheKey(env, roleARN)

	p.mu.RLock()
	if cached, ok := p.cache[key]; ok && p.now().Before(cached.expiresAt.Add(-p.refreshBefore)) {
		cfg := cached.cfg
		p.mu.RUnlock()
		return cfg, nil
	}
	p.mu.RUnlock()

	cfg, err := loadBase(ctx, p.region, p.profile)
	if err != nil {
		return aws.Config{}, err
	}
	if roleARN != "" {
		cfg.Credentials = stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN,
			func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = sessionPrefix + string(env)
				o.Duration = p.sessionDuration
			},
		)
	}

	p.mu.Lock()
	p.cache[key] = &cachedConfig{cfg: cfg, expiresAt: p.now().Add(p.sessionDuration)}
	p.mu.Unlock()

	return cfg, nil
}

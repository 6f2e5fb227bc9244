// Package identitycache fronts the identity lookup used by the auth gate with
// a Redis read-through cache. Redis failures degrade to the backing lookup;
// they never fail authentication on their own.
package identitycache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/middleware/auth"
)

const keyPrefix = "identity:"

// Metrics counts cache outcomes.
type Metrics struct {
	Lookups *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_identity_cache_lookups_total",
			Help: "Identity cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) inc(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

type cachedIdentity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// CachedLookup caches positive identity lookups for ttl. Absent users are not
// cached, so a freshly created account is visible immediately.
type CachedLookup struct {
	next    auth.IdentityLookup
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a CachedLookup.
type Option func(*CachedLookup)

func WithMetrics(m *Metrics) Option {
	return func(c *CachedLookup) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedLookup) { c.logger = logger }
}

// New wraps next with a cache on client.
func New(next auth.IdentityLookup, client *redis.Client, ttl time.Duration, opts ...Option) *CachedLookup {
	c := &CachedLookup{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedLookup) FindIdentity(ctx context.Context, userID id.UserID) (*auth.Identity, error) {
	key := keyPrefix + userID.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if identity, ok := decode(raw, userID); ok {
			c.metrics.inc("hit")
			return identity, nil
		}
		c.metrics.inc("error")
	case errors.Is(err, redis.Nil):
		c.metrics.inc("miss")
	default:
		c.metrics.inc("error")
		c.logger.WarnContext(ctx, "identity cache read failed", "error", err)
	}

	identity, err := c.next.FindIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedIdentity{UserID: identity.UserID.String(), Username: identity.Username})
	if err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "identity cache write failed", "error", err)
		}
	}
	return identity, nil
}

// Invalidate drops a cached identity.
func (c *CachedLookup) Invalidate(ctx context.Context, userID id.UserID) error {
	return c.client.Del(ctx, keyPrefix+userID.String()).Err()
}

func decode(raw []byte, want id.UserID) (*auth.Identity, bool) {
	var cached cachedIdentity
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	userID, err := id.ParseUserID(cached.UserID)
	if err != nil || userID != want {
		return nil, false
	}
	return &auth.Identity{UserID: userID, Username: cached.Username}, true
}

package config

import (
	"net"
	"strings"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

func invalid(field, message string) error {
	return ferrors.ValidationError(message).WithContext("field", field).Build()
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	switch {
	case c.Cache.MaxSizeMB < 0:
		return invalid("cache.max_size_mb", "cache size must not be negative")
	case c.Cache.TTL < 0:
		return invalid("cache.ttl", "cache ttl must not be negative")
	case c.Loading.Workers < 1 || c.Loading.Workers > 64:
		return invalid("loading.workers", "workers must be between 1 and 64")
	case c.Loading.Timeout < 0:
		return invalid("loading.timeout", "load timeout must not be negative")
	case c.Search.MaxResults < 1:
		return invalid("search.max_results", "max results must be positive")
	case c.Schedule.MaxBackups < 1:
		return invalid("schedule.max_backups", "max backups must be positive")
	case c.Schedule.BackupInterval < 0 || c.Schedule.CacheCleanupInterval < 0 || c.Schedule.ContentSyncInterval < 0:
		return invalid("schedule", "intervals must not be negative")
	case c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/"):
		return invalid("metrics.path", "metrics path must start with /")
	}
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return invalid("server.listen", "listen address must be host:port")
	}
	if src := c.Content.Source; src != nil && src.URL == "" {
		return invalid("content.source.url", "content source needs a repository url")
	}
	if c.Schedule.ContentSyncInterval > 0 && c.Content.Source == nil {
		return invalid("schedule.content_sync_interval", "content sync needs a content source")
	}
	return nil
}

package config

import (
	"catalogmirror/pkg/core"
	"catalogmirror/pkg/filter"
)

var logLevels = map[string]bool{"debug": true, "info": true, "error": true}

// Validate enforces the guardrails the mirror cannot start without. Filter
// clauses that do not parse are returned as a filter.ParseError.
func Validate(config *Config) error {
	if config == nil {
		return &core.ConfigurationError{Field: "config", Reason: "is required"}
	}
	mirror := config.Mirror

	if len(mirror.Allow) == 0 {
		return &core.ConfigurationError{Field: "allow", Reason: "at least one filter is required"}
	}
	if _, err := filter.AnyOfMultipleFilters(mirror.Allow); err != nil {
		return err
	}

	if mirror.Enable && !mirror.InCluster {
		switch {
		case mirror.StackSlug == "":
			return &core.ConfigurationError{Field: "stack_slug", Reason: "is required"}
		case mirror.GrafanaEndpoint == "":
			return &core.ConfigurationError{Field: "grafana_endpoint", Reason: "is required"}
		case mirror.Token == "":
			return &core.ConfigurationError{Field: "token", Reason: "is required"}
		}
	}

	if mirror.ReconnectCooldown <= 0 {
		return &core.ConfigurationError{Field: "reconnect_cooldown", Reason: "must be positive"}
	}
	if mirror.RequestTimeout <= 0 {
		return &core.ConfigurationError{Field: "request_timeout", Reason: "must be positive"}
	}
	if config.Cache.Size < 1 {
		return &core.ConfigurationError{Field: "cache.size", Reason: "must be >= 1"}
	}
	if config.Cache.TTL <= 0 {
		return &core.ConfigurationError{Field: "cache.ttl", Reason: "must be positive"}
	}
	if !logLevels[config.Log.Level] {
		return &core.ConfigurationError{Field: "log.level", Reason: "must be one of debug, info, error"}
	}
	return nil
}

// internal/config/database.go
package config

import (
	"fmt"
)

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisAddr returns host:port, or an empty string when Redis is not configured.
func (r *RedisConfig) RedisAddr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether a Redis URL or host was provided.
func (r *RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

// ClearanceDaysFor returns the per-payment-type override when one is set,
// otherwise the global clearance window.
func (l *LedgerConfig) ClearanceDaysFor(paymentType string) int {
	if days, ok := l.ClearanceByType[paymentType]; ok && days > 0 {
		return days
	}
	return l.ClearanceDays
}

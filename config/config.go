package config

import (
	"os"
	"strconv"
)

// App holds tunable platform policy loaded from the environment.
type App struct {
	// DefaultCommissionRate is the percent of a host's received coins
	// accrued to their agency when the agency has no override.
	DefaultCommissionRate int
	// HistoryPageSize bounds wallet/agency history queries.
	HistoryPageSize int64
}

func LoadApp() App {
	cfg := App{
		DefaultCommissionRate: 10,
		HistoryPageSize:       50,
	}

	if v := os.Getenv("DEFAULT_COMMISSION_RATE"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil && rate >= 0 && rate <= 100 {
			cfg.DefaultCommissionRate = rate
		}
	}

	if v := os.Getenv("HISTORY_PAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil && size > 0 {
			cfg.HistoryPageSize = size
		}
	}

	return cfg
}

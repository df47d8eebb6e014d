package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// DefaultSpendingCaps applies when no caps file is configured or present.
var DefaultSpendingCaps = domain.SpendingCaps{
	UserDailyUSD:     1.00,
	UserMonthlyUSD:   10.00,
	GlobalDailyUSD:   100.00,
	GlobalMonthlyUSD: 2000.00,
}

// LoadSpendingCaps reads the caps YAML from path. A missing file is not an
// error: the defaults apply so a fresh deployment is capped out of the box.
func LoadSpendingCaps(path string) (domain.SpendingCaps, error) {
	if path == "" {
		return DefaultSpendingCaps, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSpendingCaps, nil
		}
		return domain.SpendingCaps{}, fmt.Errorf("read spending caps %s: %w", path, err)
	}
	caps := DefaultSpendingCaps
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return domain.SpendingCaps{}, fmt.Errorf("parse spending caps %s: %w", path, err)
	}
	if caps.UserDailyUSD < 0 || caps.UserMonthlyUSD < 0 || caps.GlobalDailyUSD < 0 || caps.GlobalMonthlyUSD < 0 {
		return domain.SpendingCaps{}, fmt.Errorf("spending caps %s: negative cap", path)
	}
	return caps, nil
}

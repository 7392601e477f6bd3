package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ParseCronSchedule validates a standard five-field cron expression.
func ParseCronSchedule(schedule string) (bool, error) {
	if schedule == "" {
		return false, fmt.Errorf("empty schedule")
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return false, err
	}

	return true, nil
}

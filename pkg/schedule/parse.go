package schedule

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidRequest is returned when a schedule request is missing the
// field its type requires.
var ErrInvalidRequest = errors.New("invalid schedule request")

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// InputSchema returns the JSON schema of the schedule tool input:
// {"description": string, "when": {"type": kind, "date"?, "delayInSeconds"?, "cron"?}}
func InputSchema() map[string]interface{} {
	kinds := make([]interface{}, 0, len(Kinds))
	for _, k := range Kinds {
		kinds = append(kinds, string(k))
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"description": map[string]interface{}{
				"type":        "string",
				"description": "A description of the task",
			},
			"when": map[string]interface{}{
				"type":        "object",
				"description": "When the task should run",
				"properties": map[string]interface{}{
					"type": map[string]interface{}{
						"type":        "string",
						"enum":        kinds,
						"description": "The type of scheduling details",
					},
					"date": map[string]interface{}{
						"type":        "string",
						"description": "Execution time for scheduled tasks (ISO 8601). Without an offset the scheduler's time zone applies",
					},
					"delayInSeconds": map[string]interface{}{
						"type":        "integer",
						"minimum":     0,
						"maximum":     MaxDelayInSeconds,
						"description": "Delay in seconds for delayed tasks",
					},
					"cron": map[string]interface{}{
						"type":        "string",
						"description": "Cron expression for cron tasks",
					},
				},
				"required":             []interface{}{"type"},
				"additionalProperties": false,
			},
		},
		"required":             []interface{}{"description", "when"},
		"additionalProperties": false,
	}
}

// ParseRequest converts schema-validated tool params into a When and the
// task description.
func ParseRequest(params map[string]interface{}) (When, string, error) {
	description, _ := params["description"].(string)

	raw, ok := params["when"].(map[string]interface{})
	if !ok {
		return nil, description, fmt.Errorf("%w: missing 'when'", ErrInvalidRequest)
	}

	when, err := ParseWhen(raw)
	if err != nil {
		return nil, description, err
	}
	return when, description, nil
}

// ParseWhen converts the "when" object of a schedule request.
func ParseWhen(raw map[string]interface{}) (When, error) {
	kind, _ := raw["type"].(string)

	switch Kind(kind) {
	case KindNoSchedule:
		return NoSchedule{}, nil

	case KindScheduled:
		value, _ := raw["date"].(string)
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: 'scheduled' requires 'date'", ErrInvalidRequest)
		}
		date, floating, err := ParseDate(value)
		if err != nil {
			return nil, err
		}
		return Scheduled{Date: date, Floating: floating}, nil

	case KindDelayed:
		seconds, err := parseSeconds(raw["delayInSeconds"])
		if err != nil {
			return nil, err
		}
		return Delayed{DelayInSeconds: seconds}, nil

	case KindCron:
		expr, _ := raw["cron"].(string)
		expr = strings.TrimSpace(expr)
		if expr == "" {
			return nil, fmt.Errorf("%w: 'cron' requires 'cron'", ErrInvalidRequest)
		}
		return Cron{Expr: expr}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, kind)
	}
}

// ParseDate accepts RFC 3339 and a few common ISO 8601 shapes. floating
// reports a date without an offset; its wall clock is returned in UTC.
func ParseDate(value string) (date time.Time, floating bool, err error) {
	value = strings.TrimSpace(value)
	for i, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, i > 0, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, value)
}

func parseSeconds(value interface{}) (int64, error) {
	var seconds float64
	switch v := value.(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	case int64:
		seconds = float64(v)
	case nil:
		return 0, fmt.Errorf("%w: 'delayed' requires 'delayInSeconds'", ErrInvalidRequest)
	default:
		return 0, fmt.Errorf("%w: 'delayInSeconds' must be a number", ErrInvalidRequest)
	}

	if seconds < 0 || seconds != math.Trunc(seconds) {
		return 0, fmt.Errorf("%w: 'delayInSeconds' must be a non-negative integer", ErrInvalidRequest)
	}
	if seconds > float64(MaxDelayInSeconds) {
		return 0, fmt.Errorf("%w: 'delayInSeconds' must not exceed %d", ErrInvalidRequest, MaxDelayInSeconds)
	}
	return int64(seconds), nil
}

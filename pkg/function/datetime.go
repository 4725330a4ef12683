package function

import (
	"math"
	"strconv"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

const (
	microsPerMilli  = int64(1000)
	microsPerSecond = 1000 * microsPerMilli
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
	microsPerDay    = 24 * microsPerHour
	microsPerWeek   = 7 * microsPerDay
	microsPerMonth  = 31 * microsPerDay
	microsPerYear   = 365 * microsPerDay
)

// truncation windows for date_trunc; months and years are fixed-length
var timeWindows = map[string]int64{
	"ms":           microsPerMilli,
	"msec":         microsPerMilli,
	"millisecond":  microsPerMilli,
	"milliseconds": microsPerMilli,
	"s":            microsPerSecond,
	"sec":          microsPerSecond,
	"second":       microsPerSecond,
	"seconds":      microsPerSecond,
	"min":          microsPerMinute,
	"minute":       microsPerMinute,
	"minutes":      microsPerMinute,
	"h":            microsPerHour,
	"hour":         microsPerHour,
	"hours":        microsPerHour,
	"d":            microsPerDay,
	"day":          microsPerDay,
	"days":         microsPerDay,
	"w":            microsPerWeek,
	"week":         microsPerWeek,
	"weeks":        microsPerWeek,
	"month":        microsPerMonth,
	"months":       microsPerMonth,
	"y":            microsPerYear,
	"year":         microsPerYear,
	"years":        microsPerYear,
}

func registerDateTime(t *SymbolTable) {
	t.RegisterPure("from_timestamp", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		v := args[0]
		switch v.Type {
		case catalog.TypeNull, catalog.TypeTimestamp:
			return v, nil
		case catalog.TypeInteger:
			return catalog.NewTimestamp(v.Int * microsPerSecond), nil
		}
		f, err := v.ToFloat()
		if err != nil {
			return catalog.Null(), argError("FROM_TIMESTAMP", err)
		}
		return catalog.NewTimestamp(int64(math.Round(f * float64(microsPerSecond)))), nil
	})
	t.RegisterPure("to_timestamp", 1, 1, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		ts, err := args[0].ToTimestamp()
		if err != nil {
			return catalog.Null(), argError("TO_TIMESTAMP", err)
		}
		return catalog.NewTimestamp(ts), nil
	})
	t.Register(&Symbol{
		Name:    "now",
		MinArgs: 0,
		MaxArgs: 0,
		Call: func(env Env, args []catalog.Value) (catalog.Value, error) {
			return catalog.NewTime(env.Now()), nil
		},
	})

	t.RegisterPure("date_trunc", 2, 2, func(env Env, args []catalog.Value) (catalog.Value, error) {
		if args[1].IsNull() {
			return args[1], nil
		}
		ts, err := args[1].ToTimestamp()
		if err != nil {
			return catalog.Null(), argError("date_trunc", err)
		}
		window, err := parseTimeWindow(args[0].String())
		if err != nil {
			return catalog.Null(), err
		}
		return catalog.NewTimestamp((ts / window) * window), nil
	})

	t.RegisterPure("date_add", 3, 3, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return dateAdd("DATE_ADD", args, 1)
	})
	t.RegisterPure("date_sub", 3, 3, func(env Env, args []catalog.Value) (catalog.Value, error) {
		return dateAdd("DATE_SUB", args, -1)
	})

	t.Register(&Symbol{
		Name:    "time_at",
		MinArgs: 1,
		MaxArgs: 1,
		Call:    timeAt,
	})
}

// parseTimeWindow reads windows like "month", "30minutes" or "2years".
func parseTimeWindow(window string) (int64, error) {
	w := strings.ToLower(strings.TrimSpace(window))
	i := 0
	for i < len(w) && w[i] >= '0' && w[i] <= '9' {
		i++
	}
	mult := int64(1)
	if i > 0 {
		n, err := strconv.ParseInt(w[:i], 10, 64)
		if err != nil || n <= 0 {
			return 0, catalog.NewError(catalog.KindRuntimeError, "unknown time window %s", window)
		}
		mult = n
	}
	size, ok := timeWindows[w[i:]]
	if !ok {
		return 0, catalog.NewError(catalog.KindRuntimeError, "unknown time window %s", window)
	}
	return size * mult, nil
}

func dateAdd(fn string, args []catalog.Value, sign int64) (catalog.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return catalog.Null(), nil
	}
	ts, err := args[0].ToTimestamp()
	if err != nil {
		return catalog.Null(), argError(fn, err)
	}
	expr := args[1].String()
	unit := strings.ToLower(args[2].String())
	delta, err := intervalMicros(expr, unit)
	if err != nil {
		return catalog.Null(), catalog.NewError(catalog.KindRuntimeError,
			"%s: invalid expression %s for unit %s", fn, expr, args[2].String())
	}
	return catalog.NewTimestamp(ts + sign*delta), nil
}

// intervalMicros evaluates a MySQL-style DATE_ADD interval expression.
func intervalMicros(expr, unit string) (int64, error) {
	simple := map[string]int64{
		"second": microsPerSecond,
		"minute": microsPerMinute,
		"hour":   microsPerHour,
		"day":    microsPerDay,
		"week":   microsPerWeek,
		"month":  microsPerMonth,
		"year":   microsPerYear,
	}
	if size, ok := simple[unit]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(expr), 64)
		if err != nil {
			return 0, err
		}
		return int64(f * float64(size)), nil
	}

	var sep string
	var sizes []int64
	switch unit {
	case "minute_second":
		sep, sizes = ":", []int64{microsPerMinute, microsPerSecond}
	case "hour_second":
		sep, sizes = ":", []int64{microsPerHour, microsPerMinute, microsPerSecond}
	case "hour_minute":
		sep, sizes = ":", []int64{microsPerHour, microsPerMinute}
	case "day_second":
		sep, sizes = " :", []int64{microsPerDay, microsPerHour, microsPerMinute, microsPerSecond}
	case "day_minute":
		sep, sizes = " :", []int64{microsPerDay, microsPerHour, microsPerMinute}
	case "day_hour":
		sep, sizes = " ", []int64{microsPerDay, microsPerHour}
	case "year_month":
		sep, sizes = "-", []int64{microsPerYear, microsPerMonth}
	default:
		return 0, catalog.NewError(catalog.KindRuntimeError, "invalid unit %s", unit)
	}

	parts := strings.FieldsFunc(strings.TrimSpace(expr), func(r rune) bool {
		return strings.ContainsRune(sep, r)
	})
	if len(parts) != len(sizes) {
		return 0, catalog.NewError(catalog.KindRuntimeError, "invalid interval %s", expr)
	}
	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, err
		}
		total += n * sizes[i]
	}
	return total, nil
}

// parseInterval reads relative intervals such as "7days" or "2 hours".
func parseInterval(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, false
	}
	switch strings.TrimSpace(s[i:]) {
	case "sec", "secs", "second", "seconds":
		return n * microsPerSecond, true
	case "min", "mins", "minute", "minutes":
		return n * microsPerMinute, true
	case "h", "hour", "hours":
		return n * microsPerHour, true
	case "d", "day", "days":
		return n * microsPerDay, true
	case "w", "week", "weeks":
		return n * microsPerWeek, true
	case "month", "months":
		return n * microsPerMonth, true
	case "y", "year", "years":
		return n * microsPerYear, true
	}
	return 0, false
}

func timeAt(env Env, args []catalog.Value) (catalog.Value, error) {
	v := args[0]
	switch v.Type {
	case catalog.TypeNull, catalog.TypeTimestamp:
		return v, nil
	case catalog.TypeInteger:
		return catalog.NewTimestamp(v.Int * microsPerSecond), nil
	case catalog.TypeFloat:
		return catalog.NewTimestamp(int64(v.Float * float64(microsPerSecond))), nil
	}

	if v.IsConvertibleToNumeric() {
		f, _ := v.ToFloat()
		return catalog.NewTimestamp(int64(f * float64(microsPerSecond))), nil
	}

	s := strings.ToLower(strings.TrimSpace(v.String()))
	now := env.Now().UnixMicro()
	if s == "now" {
		return catalog.NewTimestamp(now), nil
	}
	if strings.HasPrefix(s, "-") {
		if d, ok := parseInterval(s[1:]); ok {
			return catalog.NewTimestamp(now - d), nil
		}
	}
	if strings.HasSuffix(s, " ago") {
		if d, ok := parseInterval(strings.TrimSuffix(s, " ago")); ok {
			return catalog.NewTimestamp(now - d), nil
		}
	}
	ts, err := v.ToTimestamp()
	if err != nil {
		return catalog.Null(), catalog.NewError(catalog.KindTypeError, "TIME_AT: invalid argument %s", v.String())
	}
	return catalog.NewTimestamp(ts), nil
}

package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the pause between polls when no schedule is configured.
const DefaultInterval = 600 * time.Second

// SpecKind is the normalized kind of a schedule string.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

func (k SpecKind) String() string {
	if k == SpecCron {
		return "cron"
	}
	return "interval"
}

// ParsedSpec is a parsed poll schedule.
//
// Supported forms:
//   - Interval duration: "600s", "10m", "1h30m"
//   - Interval HH:MM: "00:10" (10 minutes), "02:30" (2 hours 30 minutes)
//   - Cron: "*/10 * * * *", "@hourly", "@every 10m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm" | "default"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a schedule string. An empty string yields DefaultInterval.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{Kind: SpecInterval, Every: DefaultInterval, Source: "default"}, nil
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	case strings.HasPrefix(low, "interval:"):
		return parseIntervalSpec(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseIntervalSpec(s[len("every:"):])
	}

	// any whitespace or leading '@' => cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}
	if spec, err := parseIntervalSpec(s); err == nil {
		return spec, nil
	}
	return ParsedSpec{}, fmt.Errorf(
		"invalid schedule %q (use duration like '600s', HH:MM like '00:10', or cron like '*/10 * * * *')",
		raw,
	)
}

func parseIntervalSpec(v string) (ParsedSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '10m')", v)
	}
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// Schedule turns the parsed spec into a cron.Schedule. Intervals use
// cron.Every, so they are rounded down to whole seconds (minimum 1s).
func (p ParsedSpec) Schedule() (cron.Schedule, error) {
	switch p.Kind {
	case SpecCron:
		sched, err := cronParser.Parse(p.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", p.Cron, err)
		}
		// robfig returns the zero time for dates that never occur (e.g. Feb 30).
		if sched.Next(time.Now()).IsZero() {
			return nil, fmt.Errorf("cron schedule %q never fires", p.Cron)
		}
		return sched, nil
	default:
		if p.Every <= 0 {
			return nil, fmt.Errorf("interval must be > 0")
		}
		return cron.Every(p.Every), nil
	}
}

func (p ParsedSpec) String() string {
	if p.Kind == SpecCron {
		return p.Cron
	}
	return p.Every.String()
}

// BuildSchedule is ParseSchedule followed by Schedule.
func BuildSchedule(raw string) (cron.Schedule, ParsedSpec, error) {
	spec, err := ParseSchedule(raw)
	if err != nil {
		return nil, ParsedSpec{}, err
	}
	sched, err := spec.Schedule()
	if err != nil {
		return nil, ParsedSpec{}, err
	}
	return sched, spec, nil
}

// Package schedjobs runs minute-resolution cron jobs.
package schedjobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronJob fires on every minute whose fields all have their bit set.
type CronJob struct {
	ID          string
	Minutes     uint64 // bit n = minute n
	Hours       uint32 // bit n = hour n
	DaysOfMonth uint32 // bit n = day n+1
	Weekdays    uint8  // bit 0 = Sunday
	Task        func(ctx context.Context) error
	OnFinished  func(error) // optional
}

const (
	AllMinutes     uint64 = 1<<60 - 1
	AllHours       uint32 = 1<<24 - 1
	AllDaysOfMonth uint32 = 1<<31 - 1
	AllWeekdays    uint8  = 1<<7 - 1
)

// NewEveryMinEmptyCronJob matches every minute and has no Task yet.
func NewEveryMinEmptyCronJob(jobID string) *CronJob {
	return &CronJob{
		ID:          jobID,
		Minutes:     AllMinutes,
		Hours:       AllHours,
		DaysOfMonth: AllDaysOfMonth,
		Weekdays:    AllWeekdays,
	}
}

type bitset interface {
	~uint8 | ~uint32 | ~uint64
}

// bitsFrom sets bit v-lo for every v in [lo,hi]; the rest is ignored.
func bitsFrom[B bitset](list []int, lo, hi int) B {
	var bits B
	for _, v := range list {
		if v >= lo && v <= hi {
			bits |= 1 << (v - lo)
		}
	}
	return bits
}

func BitsFromMinutes(list []int) uint64     { return bitsFrom[uint64](list, 0, 59) }
func BitsFromHours(list []int) uint32       { return bitsFrom[uint32](list, 0, 23) }
func BitsFromWeekdays(list []int) uint8     { return bitsFrom[uint8](list, 0, 6) }
func BitsFromDaysOfMonth(list []int) uint32 { return bitsFrom[uint32](list, 1, 31) }

// ParseCronJob builds a job from a five-field crontab spec: minute hour day-of-month month weekday.
// Fields accept "*", "*/step", "a-b", "a-b/step" and comma lists. Month must be "*".
func ParseCronJob(jobID, spec string) (*CronJob, error) {
	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", spec, len(fields))
	}
	if fields[3] != "*" {
		return nil, fmt.Errorf("cron %q: month field must be *", spec)
	}
	job := &CronJob{ID: jobID}
	var err error
	var list []int
	if list, err = parseCronField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("cron %q minute: %w", spec, err)
	}
	job.Minutes = BitsFromMinutes(list)
	if list, err = parseCronField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("cron %q hour: %w", spec, err)
	}
	job.Hours = BitsFromHours(list)
	if list, err = parseCronField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("cron %q day of month: %w", spec, err)
	}
	job.DaysOfMonth = BitsFromDaysOfMonth(list)
	if list, err = parseCronField(fields[4], 0, 6); err != nil {
		return nil, fmt.Errorf("cron %q weekday: %w", spec, err)
	}
	job.Weekdays = BitsFromWeekdays(list)
	return job, nil
}

func parseCronField(field string, lo, hi int) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(field, ",") {
		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad step %q", stepStr)
			}
			step = n
		}
		from, to := lo, hi
		if rng != "*" {
			a, b, isRange := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return nil, fmt.Errorf("bad value %q", a)
			}
			to = from
			if isRange {
				if to, err = strconv.Atoi(b); err != nil {
					return nil, fmt.Errorf("bad value %q", b)
				}
			} else if hasStep {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("%q out of range [%d,%d]", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			out = append(out, v)
		}
	}
	return out, nil
}

func (job *CronJob) Matches(now time.Time) bool {
	return job.Minutes&(1<<now.Minute()) != 0 &&
		job.Hours&(1<<now.Hour()) != 0 &&
		job.DaysOfMonth&(1<<(now.Day()-1)) != 0 &&
		job.Weekdays&(1<<now.Weekday()) != 0
}

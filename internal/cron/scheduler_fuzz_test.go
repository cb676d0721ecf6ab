package cron

import (
	"context"
	"testing"
)

func FuzzRegisterJob(f *testing.F) {
	f.Add("*/5 * * * *")
	f.Add("0 0 * * *")
	f.Add("@hourly")
	f.Add("@every 1h")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("* * * * * *")

	f.Fuzz(func(t *testing.T, expr string) {
		s := NewScheduler(nil)
		if err := s.RegisterJob(&simpleJob{name: "fuzz", schedule: expr}); err != nil {
			if len(s.jobs) != 0 {
				t.Fatalf("rejected schedule %q was queued", expr)
			}
			return
		}
		// Anything RegisterJob accepts must start cleanly.
		if err := s.Start(); err != nil {
			t.Fatalf("start with %q: %v", expr, err)
		}
		_ = s.Stop(context.Background())
	})
}

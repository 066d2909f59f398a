package bot

import (
	"testing"
	"time"
)

func TestNextCronDuration_EveryMinute(t *testing.T) {
	d, ok := nextCronDuration("* * * * *")
	if !ok || d <= 0 || d > time.Minute {
		t.Errorf("nextCronDuration(* * * * *) = %v, %t, want within (0, 1m]", d, ok)
	}
}

func TestNextCronDuration_Daily(t *testing.T) {
	d, ok := nextCronDuration("0 3 * * *")
	if !ok || d <= 0 || d > 24*time.Hour {
		t.Errorf("nextCronDuration(0 3 * * *) = %v, %t, want within (0, 24h]", d, ok)
	}
}

func TestNextCronDuration_Invalid(t *testing.T) {
	for _, expr := range []string{"", "not a cron", "* * *", "61 * * * *"} {
		if _, ok := nextCronDuration(expr); ok {
			t.Errorf("nextCronDuration(%q) ok = true, want false", expr)
		}
	}
}

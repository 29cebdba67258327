package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRegistryRun(t *testing.T) {
	tests := []struct {
		name        string
		checkers    map[string]Checker
		wantHealthy bool
		wantChecks  map[string]string
	}{
		{
			name:        "no checks",
			checkers:    nil,
			wantHealthy: true,
			wantChecks:  map[string]string{},
		},
		{
			name: "all ok",
			checkers: map[string]Checker{
				"database": CheckerFunc(func(context.Context) error { return nil }),
				"redis":    CheckerFunc(func(context.Context) error { return nil }),
			},
			wantHealthy: true,
			wantChecks:  map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name: "one failing",
			checkers: map[string]Checker{
				"database": CheckerFunc(func(context.Context) error { return nil }),
				"redis":    CheckerFunc(func(context.Context) error { return errors.New("down") }),
			},
			wantHealthy: false,
			wantChecks:  map[string]string{"database": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(time.Second, nil)
			for name, c := range tt.checkers {
				reg.Add(name, c)
			}
			report := reg.Run(context.Background())
			if report.Healthy != tt.wantHealthy {
				t.Errorf("Healthy = %v, want %v", report.Healthy, tt.wantHealthy)
			}
			if len(report.Checks) != len(tt.wantChecks) {
				t.Fatalf("Checks = %v, want %v", report.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if report.Checks[name] != want {
					t.Errorf("Checks[%s] = %q, want %q", name, report.Checks[name], want)
				}
			}
		})
	}
}

func TestRegistryTimeout(t *testing.T) {
	reg := NewRegistry(20*time.Millisecond, nil)
	reg.Add("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	report := reg.Run(context.Background())
	if report.Healthy {
		t.Error("slow check should fail")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %s, timeout not applied", elapsed)
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry(0, nil)
	reg.Add("redis", CheckerFunc(func(context.Context) error { return nil }))
	reg.Add("database", CheckerFunc(func(context.Context) error { return nil }))
	names := reg.Names()
	if len(names) != 2 || names[0] != "database" || names[1] != "redis" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRedisCheckerUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	if err := NewRedisChecker(client).HealthCheck(context.Background()); err == nil {
		t.Error("expected error from unreachable redis")
	}
}

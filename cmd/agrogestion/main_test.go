package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingServer struct{ calls atomic.Int32 }

func (s *countingServer) Shutdown(context.Context) error {
	s.calls.Add(1)
	return nil
}

func TestShutdownOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		signalled bool
		want      int32
	}{
		{"member failed", false, 1},
		{"signal leaves drain to graceful shutdown", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			gctx, gcancel := context.WithCancel(ctx)
			defer gcancel()

			if tt.signalled {
				cancel()
			} else {
				gcancel()
			}

			srv := &countingServer{}
			done := make(chan struct{})
			go func() {
				shutdownOnFailure(ctx, gctx, srv, time.Second)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("shutdownOnFailure did not return")
			}
			if got := srv.calls.Load(); got != tt.want {
				t.Fatalf("Shutdown calls = %d, want %d", got, tt.want)
			}
		})
	}
}

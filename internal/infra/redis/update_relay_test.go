package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

func TestUpdateRelayForwardsToLocalHub(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	relay := NewUpdateRelay(newClient(mr), nil)
	hub := app.NewHub()
	key := domain.GroupKey{CategoryID: "go", Difficulty: domain.DifficultyEasy, NumQuestions: 5}
	updates, cancel := hub.Subscribe(key)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, hub) }()

	update := domain.GroupUpdate{Key: key, Stats: domain.GroupStats{GroupKey: key, ParticipantsCount: 2, TopScore: 5}}
	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	var got domain.GroupUpdate
wait:
	for {
		select {
		case got = <-updates:
			break wait
		case <-tick.C:
			// The subscription may not be registered yet.
			relay.Publish(update)
		case <-deadline:
			t.Fatalf("timed out waiting for relayed update")
		}
	}
	if got.Key != key || got.Stats.ParticipantsCount != 2 || got.Stats.TopScore != 5 {
		t.Fatalf("unexpected update %+v", got)
	}

	stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not stop")
	}
}

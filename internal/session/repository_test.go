package session

import (
	"context"
	"testing"
	"time"
)

func TestRepository_Frames(t *testing.T) {
	_, repo, _ := setupService(t, &fakeFFmpeg{})
	ctx := context.Background()

	sess := &Session{ID: NewID(), Status: StatusReady, WorkDir: "/tmp/x", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	paths := []string{"/f/1.jpg", "/f/2.jpg", "/f/10.jpg"}
	if err := repo.InsertFrames(ctx, sess.ID, KindFake, paths); err != nil {
		t.Fatalf("InsertFrames() error = %v", err)
	}
	got, err := repo.GetFrames(ctx, sess.ID, KindFake)
	if err != nil {
		t.Fatalf("GetFrames() error = %v", err)
	}
	if len(got) != 3 || got[2] != "/f/10.jpg" {
		t.Errorf("GetFrames() = %v, want insertion order", got)
	}

	if err := repo.InsertFrames(ctx, sess.ID, KindFake, paths[:1]); err != nil {
		t.Fatalf("InsertFrames() replace error = %v", err)
	}
	if got, _ := repo.GetFrames(ctx, sess.ID, KindFake); len(got) != 1 {
		t.Errorf("replaced sequence has %d frames, want 1", len(got))
	}
	if got, _ := repo.GetFrames(ctx, sess.ID, KindReal); len(got) != 0 {
		t.Errorf("real sequence should be empty, got %v", got)
	}
}

func TestRepository_SessionStatus(t *testing.T) {
	_, repo, _ := setupService(t, &fakeFFmpeg{})
	ctx := context.Background()

	sess := &Session{ID: NewID(), Status: StatusExtracting, WorkDir: "/tmp/y", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := repo.UpdateSessionStatus(ctx, sess.ID, StatusFailed, ReasonInternal, "boom"); err != nil {
		t.Fatalf("UpdateSessionStatus() error = %v", err)
	}

	got, err := repo.GetSession(ctx, sess.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSession() = %v, %v", got, err)
	}
	if got.Status != StatusFailed || got.Reason != ReasonInternal || got.Error != "boom" || got.WorkDir != "/tmp/y" {
		t.Errorf("GetSession() = %+v", got)
	}

	missing, err := repo.GetSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetSession(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestRepository_Config(t *testing.T) {
	_, repo, _ := setupService(t, &fakeFFmpeg{})
	ctx := context.Background()

	if v, err := repo.GetConfig(ctx, "instance_id"); err != nil || v != "" {
		t.Fatalf("GetConfig(unset) = %q, %v", v, err)
	}
	if err := repo.SetConfig(ctx, "instance_id", "a"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetConfig(ctx, "instance_id", "b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := repo.GetConfig(ctx, "instance_id"); v != "b" {
		t.Errorf("GetConfig() = %q, want b", v)
	}
}

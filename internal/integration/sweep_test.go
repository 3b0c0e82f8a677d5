package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sir_venger/upload_lite/internal/models"
)

func Test_Sweep_RemovesStaleSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := e.start(t, 6, 3)
	if resp, _ := e.putChunk(t, sess.SessionID, 0, []byte("abc"), ""); resp.StatusCode >= 300 {
		t.Fatalf("chunk status %d", resp.StatusCode)
	}

	// olderThan=0 считает протухшим всё, что не собирается прямо сейчас.
	expired, err := e.reg.ExpireInactive(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0] != sess.SessionID {
		t.Fatalf("expired = %v", expired)
	}
	for _, id := range expired {
		if err := e.chunks.DeleteSession(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	if code, _ := e.status(t, sess.SessionID); code != http.StatusNotFound {
		t.Fatalf("status after sweep %d", code)
	}
	if _, err := e.chunks.GetChunk(ctx, sess.SessionID, 0); !errors.Is(err, models.ErrMissingChunk) {
		t.Fatal("chunks survived sweep")
	}
}

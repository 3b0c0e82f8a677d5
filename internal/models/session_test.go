package models

import "testing"

func TestExpectedChunks(t *testing.T) {
	cases := []struct {
		total, chunk int64
		want         int
	}{
		{10, 3, 4},
		{10, 5, 2}, // ровное деление — без лишней нулевой части
		{10, 10, 1},
		{5, 2, 3},
		{1, 1, 1},
		{1 << 30, 1 << 20, 1 << 10},
	}
	for _, c := range cases {
		u := UploadSession{TotalSize: c.total, ChunkSize: c.chunk}
		if got := u.ExpectedChunks(); got != c.want {
			t.Errorf("ExpectedChunks(total=%d, chunk=%d) = %d, want %d", c.total, c.chunk, got, c.want)
		}
	}
}

func TestChunkLength(t *testing.T) {
	u := UploadSession{TotalSize: 10, ChunkSize: 3}
	want := []int64{3, 3, 3, 1}
	for idx, w := range want {
		if got := u.ChunkLength(idx); got != w {
			t.Errorf("ChunkLength(%d) = %d, want %d", idx, got, w)
		}
	}

	// Ровное деление: последняя часть полноразмерная.
	u = UploadSession{TotalSize: 9, ChunkSize: 3}
	if got := u.ChunkLength(2); got != 3 {
		t.Errorf("ChunkLength(last, even split) = %d, want 3", got)
	}

	// Сценарий totalSize=5, chunkSize=2: длины {2,2,1}.
	u = UploadSession{TotalSize: 5, ChunkSize: 2}
	for idx, w := range []int64{2, 2, 1} {
		if got := u.ChunkLength(idx); got != w {
			t.Errorf("ChunkLength(%d) = %d, want %d", idx, got, w)
		}
	}

	if got := u.ChunkLength(3); got != 0 {
		t.Errorf("ChunkLength(out of range) = %d, want 0", got)
	}
}

func TestStatePredicates(t *testing.T) {
	if !StateIncomplete.Mutable() || !StateReadyToAssemble.Mutable() {
		t.Error("incomplete/ready states must be mutable")
	}
	for _, s := range []CompletionState{StateAssembling, StateFinalized, StateFailed} {
		if s.Mutable() {
			t.Errorf("state %s must not be mutable", s)
		}
	}
	if !StateFinalized.Terminal() || !StateFailed.Terminal() {
		t.Error("finalized/failed must be terminal")
	}
	if StateAssembling.Terminal() {
		t.Error("assembling is not terminal")
	}
}

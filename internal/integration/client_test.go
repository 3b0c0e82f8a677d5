package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sir_venger/upload_lite/pkg/digest"
	"github.com/sir_venger/upload_lite/pkg/uploadclient"
)

func Test_Client_UploadRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("upload_lite"), 4096)
	src := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	cli := uploadclient.New()
	algo, _ := digest.New(digest.SHA256)

	const chunkSize = 7000
	sess, err := cli.Start(ctx, e.srv.URL, uploadclient.StartRequest{
		TotalSize: int64(len(payload)),
		ChunkSize: chunkSize,
		FileName:  "src.bin",
	})
	if err != nil {
		t.Fatal(err)
	}

	var object *uploadclient.FinalObject
	for idx := 0; idx < sess.Chunks; idx++ {
		off := idx * chunkSize
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		part := payload[off:end]

		receipt, err := cli.PutChunk(ctx, e.srv.URL, uploadclient.PutChunkRequest{
			SessionID: sess.SessionID,
			Index:     idx,
			Reader:    bytes.NewReader(part),
			Size:      int64(len(part)),
			Digest:    algo.Sum(part),
			Total:     sess.Chunks,
		})
		if err != nil {
			t.Fatalf("chunk %d: %v", idx, err)
		}
		if receipt.Object != nil {
			object = receipt.Object
		}
	}

	if object == nil {
		t.Fatal("no final object in receipts")
	}
	if object.Digest != algo.Sum(payload) {
		t.Fatalf("object digest %s, want %s", object.Digest, algo.Sum(payload))
	}

	st, err := cli.Status(ctx, e.srv.URL, sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != "finalized" {
		t.Fatalf("state %s", st.State)
	}
}

func Test_Client_Abort(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cli := uploadclient.New()
	sess, err := cli.Start(ctx, e.srv.URL, uploadclient.StartRequest{TotalSize: 10, ChunkSize: 4, FileName: "x"})
	if err != nil {
		t.Fatal(err)
	}

	if err := cli.Abort(ctx, e.srv.URL, sess.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := cli.Status(ctx, e.srv.URL, sess.SessionID); err == nil {
		t.Fatal("status of aborted session succeeded")
	}
}

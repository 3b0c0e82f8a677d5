package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/upload_lite/pkg/digest"
	"github.com/sir_venger/upload_lite/pkg/uploadclient"
)

const (
	defaultChunkSize = 4 << 20
	defaultParallel  = 4
)

// main — CLI для загрузки файла по частям: uploadctl [upload|status|abort].
func main() {
	baseURL := flag.String("server", "http://localhost:8080", "upload service base URL")
	chunkSize := flag.Int64("chunk-size", defaultChunkSize, "chunk size in bytes")
	parallel := flag.Int("parallel", defaultParallel, "concurrent chunk uploads")
	algoName := flag.String("algo", digest.SHA256, "digest algorithm for client checksums")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	cli := uploadclient.New()
	ctx := context.Background()

	var err error
	switch args[0] {
	case "upload":
		if len(args) != 2 {
			usage()
		}
		err = runUpload(ctx, cli, *baseURL, args[1], *chunkSize, *parallel, *algoName)
	case "status":
		if len(args) != 2 {
			usage()
		}
		var st uploadclient.Status
		st, err = cli.Status(ctx, *baseURL, args[1])
		if err == nil {
			fmt.Printf("%s: %s (%d/%d chunks)\n", st.SessionID, st.State, st.Accepted, st.Expected)
		}
	case "abort":
		if len(args) != 2 {
			usage()
		}
		err = cli.Abort(ctx, *baseURL, args[1])
	default:
		usage()
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: uploadctl [flags] upload <file> | status <session-id> | abort <session-id>")
	os.Exit(2)
}

// runUpload открывает сессию и заливает части файла параллельно.
func runUpload(ctx context.Context, cli uploadclient.Client, baseURL, path string, chunkSize int64, parallel int, algoName string) error {
	algo, err := digest.New(algoName)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	sess, err := cli.Start(ctx, baseURL, uploadclient.StartRequest{
		TotalSize: info.Size(),
		ChunkSize: chunkSize,
		FileName:  info.Name(),
	})
	if err != nil {
		return err
	}
	log.Printf("session %s: %d chunks of %d bytes", sess.SessionID, sess.Chunks, sess.ChunkSize)

	g, gctx := errgroup.WithContext(ctx)
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)

	for idx := 0; idx < sess.Chunks; idx++ {
		idx := idx
		g.Go(func() error {
			return putChunk(gctx, cli, baseURL, path, sess, idx, algo)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	st, err := cli.Status(ctx, baseURL, sess.SessionID)
	if err != nil {
		return err
	}
	log.Printf("session %s finished: %s", sess.SessionID, st.State)
	return nil
}

// putChunk читает свой диапазон файла, считает дайджест и отправляет часть.
func putChunk(ctx context.Context, cli uploadclient.Client, baseURL, path string, sess uploadclient.Session, idx int, algo digest.Algo) error {
	off := int64(idx) * sess.ChunkSize
	length := sess.ChunkSize
	if off+length > sess.TotalSize {
		length = sess.TotalSize - off
	}

	// Каждая горутина держит собственный дескриптор, чтобы не делить смещение.
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(f, off, length), buf); err != nil {
		return err
	}

	receipt, err := cli.PutChunk(ctx, baseURL, uploadclient.PutChunkRequest{
		SessionID: sess.SessionID,
		Index:     idx,
		Reader:    bytes.NewReader(buf),
		Size:      length,
		Digest:    algo.Sum(buf),
		Total:     sess.Chunks,
	})
	if err != nil {
		return fmt.Errorf("chunk %d: %w", idx, err)
	}

	if receipt.Object != nil {
		log.Printf("object %s assembled: %d bytes, %s", receipt.Object.ObjectID, receipt.Object.Size, receipt.Object.Digest)
	}
	return nil
}

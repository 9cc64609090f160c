// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve downloads files from ordered mirror lists, verifying each
// transfer against the file's declared checksum while it streams.
//
// A task first looks for the file under the read-only data root, then under
// the cache. Otherwise mirrors are tried in order, each exactly once, until one
// serves bytes that match the checksum. Bytes are streamed into a temporary
// file beside the destination and renamed into place only after verification,
// so a failed or cancelled attempt never leaves a file that looks complete.
package retrieve

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// Engine fetches DownloadTasks. It holds no per-task state and is safe for
// concurrent use on tasks with distinct paths.
type Engine struct {
	client    *http.Client
	cacheDir  string
	dataRoot  string
	userAgent string

	mu       sync.Mutex
	progress io.Writer
}

// New returns an Engine that downloads with client into cfg.CacheDir.
func New(client *http.Client, cfg types.RetrievalConfig, progress io.Writer) *Engine {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Engine{
		client:    client,
		cacheDir:  cfg.CacheDir,
		dataRoot:  cfg.DataRoot,
		userAgent: cfg.UserAgent,
		progress:  progress,
	}
}

// Attempt is the result of trying one mirror.
type Attempt struct {
	URL   string
	Bytes int64
	Err   error
}

// Outcome is the terminal result of a task.
type Outcome struct {
	Key       string
	Path      string
	LocalPath string
	State     types.TaskState
	// URL is the mirror whose bytes verified.
	URL      string
	Attempts []Attempt
	Err      error

	// History records every state the task passed through.
	History []types.TaskState
}

func (o *Outcome) transition(to types.TaskState) {
	if !allowedTransition(o.State, to) {
		panic(fmt.Sprintf("retrieve: disallowed transition %s -> %s", o.State, to))
	}
	o.State = to
	o.History = append(o.History, to)
}

func allowedTransition(from, to types.TaskState) bool {
	switch from {
	case types.TaskPending:
		return to == types.TaskLocalHit || to == types.TaskDownloading || to == types.TaskFailed
	case types.TaskDownloading:
		return to == types.TaskVerified || to == types.TaskFailed
	default:
		return false
	}
}

// Fetch runs task to a terminal state. The returned error equals Outcome.Err
// and is nil for LOCAL_HIT and VERIFIED.
func (e *Engine) Fetch(ctx context.Context, task types.DownloadTask) (Outcome, error) {
	log := logging.FromContext(ctx).With().Str("key", task.Key).Str("path", task.Path).Logger()
	out := Outcome{
		Key:     task.Key,
		Path:    task.Path,
		State:   types.TaskPending,
		History: []types.TaskState{types.TaskPending},
	}
	fail := func(err error) (Outcome, error) {
		out.transition(types.TaskFailed)
		out.Err = err
		e.printf("failed:  %s (%v)\n", task.Path, err)
		log.Error().Err(err).Msg("download failed")
		return out, err
	}

	if !filepath.IsLocal(filepath.FromSlash(task.Path)) {
		return fail(fmt.Errorf("%w: %q", ErrUnsafePath, task.Path))
	}
	rel := filepath.FromSlash(task.Path)

	if e.dataRoot != "" {
		p := filepath.Join(e.dataRoot, rel)
		if exists(p) {
			out.LocalPath = p
			out.transition(types.TaskLocalHit)
			log.Debug().Str("local_path", p).Msg("found under data root")
			return out, nil
		}
	}
	dest := filepath.Join(e.cacheDir, rel)
	if exists(dest) {
		out.LocalPath = dest
		out.transition(types.TaskLocalHit)
		e.printf("skipped: %s (already cached)\n", task.Path)
		return out, nil
	}

	if _, err := NewDigest(task.ChecksumType); err != nil {
		return fail(err)
	}
	if len(task.URLs) == 0 {
		return fail(fmt.Errorf("%w: %s: no mirrors", ErrExhaustedMirrors, task.Path))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fail(fmt.Errorf("creating directory for %s: %w", task.Path, err))
	}

	out.transition(types.TaskDownloading)
	e.printf("downloading: %s (%s)\n", task.Path, humanize.Bytes(uint64(max(task.Size, 0))))

	var errs []error
	for _, url := range task.URLs {
		h, _ := NewDigest(task.ChecksumType)
		n, err := e.tryMirror(ctx, url, dest, h, task.Checksum)
		out.Attempts = append(out.Attempts, Attempt{URL: url, Bytes: n, Err: err})
		if err == nil {
			out.URL = url
			out.LocalPath = dest
			out.transition(types.TaskVerified)
			log.Info().Str("url", url).Int64("bytes", n).Msg("verified")
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(fmt.Errorf("%s: %w", task.Path, ctxErr))
		}
		var cm *ChecksumMismatchError
		var te *TransferError
		if !errors.As(err, &cm) && !errors.As(err, &te) {
			return fail(err)
		}
		log.Warn().Str("url", url).Err(err).Msg("mirror failed, trying next")
		errs = append(errs, err)
	}
	return fail(fmt.Errorf("%w: %s: %w", ErrExhaustedMirrors, task.Path, errors.Join(errs...)))
}

// tryMirror streams url into a temporary file next to dest while hashing it,
// and renames the file to dest only if the digest matches want.
func (e *Engine) tryMirror(ctx context.Context, url, dest string, h hash.Hash, want string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransferError{URL: url, Err: err}
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, &TransferError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, &TransferError{URL: url, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".esgf-*.part")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return n, &TransferError{URL: url, Err: copyErr}
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("closing temp file: %w", closeErr)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		os.Remove(tmpPath)
		return n, &ChecksumMismatchError{URL: url, Want: want, Got: got}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func (e *Engine) printf(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.progress, format, args...)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

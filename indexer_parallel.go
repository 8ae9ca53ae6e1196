package stackgraphs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/store"
)

// workItem is one file on its way through a run. content is nil until the
// file has been read.
type workItem struct {
	path        string
	lang        string
	rules       builder.RuleSet
	content     []byte
	fingerprint string
}

type buildResult struct {
	item workItem
	res  *builder.Result
	err  error
	took time.Duration
}

// run indexes items in three phases:
//
//	Phase A (serial):   read, fingerprint, skip unchanged, mark pending.
//	Phase B (parallel): build graphs and partial paths on an errgroup.
//	Phase C (serial):   commit each result in the caller goroutine.
//
// Per-file failures commit Error records. Store failures are collected and
// returned together once every file has been handled.
func (ix *Indexer) run(ctx context.Context, roots []string, items []workItem, start time.Time) (err error) {
	r, err := ix.store.BeginRun(roots)
	if err != nil {
		return err
	}
	r.Discovered = len(items)
	defer func() {
		if err != nil {
			r.Error = err.Error()
		}
		if ferr := ix.store.FinishRun(r); ferr != nil && err == nil {
			err = ferr
		}
	}()

	discovered := make([]string, 0, len(items))
	for _, it := range items {
		discovered = append(discovered, it.path)
	}
	existing, err := ix.store.FilesByPath(discovered)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	// ---- Phase A: serial preparation ----
	var errs []error
	var todo []workItem
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		it, skip, buildErr := ix.prepare(it, existing[it.path])
		switch {
		case skip:
			r.Skipped++
		case buildErr != nil:
			r.Failed++
			ix.logger.Warn("index.file.failed", "path", it.path, "error", buildErr)
			if err := ix.commit(&store.Batch{File: ix.record(it), BuildErr: buildErr}); err != nil {
				errs = append(errs, err)
			}
		default:
			if err := ix.store.MarkPending(it.path, it.lang); err != nil {
				errs = append(errs, err)
				continue
			}
			todo = append(todo, it)
		}
	}

	// ---- Phase B: parallel builds, Phase C: serial commits ----
	results := make(chan buildResult)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	var waitErr error
	go func() {
		defer close(results)
		for _, it := range todo {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				t := time.Now()
				res, err := builder.Build(gctx, builder.Source{Path: it.path, Language: it.lang, Content: it.content}, it.rules, ix.limits)
				select {
				case results <- buildResult{item: it, res: res, err: err, took: time.Since(t)}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr = g.Wait()
	}()

	for br := range results {
		if br.err != nil && ctx.Err() != nil {
			// Cancelled mid-build; keep the pending record.
			continue
		}
		b := &store.Batch{File: ix.record(br.item)}
		if br.err != nil {
			r.Failed++
			b.BuildErr = br.err
			ix.logger.Warn("index.file.failed", "path", br.item.path, "error", br.err)
		} else {
			r.Built++
			b.Graph, b.Paths = br.res.Graph, br.res.Paths
			ix.logger.Debug("index.file.built", "path", br.item.path,
				"nodes", br.res.Stats.Nodes, "paths", br.res.Stats.Paths,
				"truncated", br.res.Stats.Truncated, "took", br.took)
		}
		if err := ix.commit(b); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}

	ix.setLastRun(discovered)
	ix.logger.Info("index.done", "run", r.ID, "discovered", r.Discovered, "skipped", r.Skipped,
		"built", r.Built, "failed", r.Failed, "took", time.Since(start))

	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepare reads and fingerprints it. skip reports that the stored record
// already matches the content and rules version. A non-nil error is a
// per-file failure to be recorded.
func (ix *Indexer) prepare(it workItem, existing *store.File) (workItem, bool, error) {
	rs, err := ix.rulesFor(it)
	if err != nil {
		return it, false, err
	}
	it.rules = rs
	it.lang = rs.Language()

	if it.content == nil {
		content, err := os.ReadFile(it.path)
		if err != nil {
			return it, false, fmt.Errorf("read file: %w", err)
		}
		it.content = content
	}
	it.fingerprint = store.Fingerprint(it.content)

	if existing != nil &&
		existing.Fingerprint == it.fingerprint &&
		existing.RulesVersion == rs.Version() &&
		(existing.Status == store.StatusIndexed || existing.Status == store.StatusError) {
		return it, true, nil
	}
	return it, false, nil
}

// rulesFor prefers the rule set registered for the extension, so .tsx
// files keep their grammar while reporting the typescript language.
func (ix *Indexer) rulesFor(it workItem) (builder.RuleSet, error) {
	if rs, ok := ix.registry.ForFile(it.path); ok && (it.lang == "" || rs.Language() == it.lang) {
		return rs, nil
	}
	if it.lang != "" {
		if rs, ok := ix.registry.ForLanguage(it.lang); ok {
			return rs, nil
		}
		return nil, fmt.Errorf("no rules for language %q", it.lang)
	}
	return nil, errors.New("no rules for file extension")
}

func (ix *Indexer) record(it workItem) store.File {
	f := store.File{Path: it.path, Language: it.lang, Fingerprint: it.fingerprint}
	if it.rules != nil {
		f.RulesVersion = it.rules.Version()
	}
	return f
}

func (ix *Indexer) commit(b *store.Batch) error {
	if err := ix.store.CommitBatch(b); err != nil {
		return fmt.Errorf("commit %s: %w", b.File.Path, err)
	}
	return nil
}

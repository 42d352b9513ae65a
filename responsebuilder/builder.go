package responsebuilder

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/dapserve/dapmodel"
	"github.com/marmos91/dapserve/internal/dapcode"
	"github.com/marmos91/dapserve/internal/logger"
	"github.com/marmos91/dapserve/internal/rescache"
	"github.com/marmos91/dapserve/internal/telemetry"
	"github.com/marmos91/dapserve/internal/timeout"
	"github.com/marmos91/dapserve/pkg/metrics"
)

// applyDefaultProjection implements the DAP convention that an empty CE (or
// one that is only a selection clause) means "project everything": it marks
// the whole tree projected before ParseConstraint runs, so a CE with no
// explicit projection terms still yields data. A CE with at least one
// projection term instead starts from nothing projected, so ParseConstraint
// can mark exactly the named variables.
func applyDefaultProjection(tree dapmodel.VariableTree, ce string) {
	projectionPart, _, _ := strings.Cut(ce, "&")
	if strings.TrimSpace(projectionPart) == "" {
		tree.SetProjectedRecursive(true)
		return
	}
	tree.SetProjectedRecursive(false)
}

// TreeFactory allocates a fresh VariableTree wrapping root — used when a
// cache hit needs to hand the builder a tree it does not otherwise own.
type TreeFactory func(root *dapmodel.Variable) dapmodel.VariableTree

// Config carries the response builder's request-independent settings, the
// enumerated configuration from spec.md §6 not already owned by the cache.
type Config struct {
	// DefaultProtocol is advertised in the MIME response headers whenever a
	// RequestContext arrives with no ProtocolVersion of its own (see
	// protocolVersion below) — the server-side fallback for a request that
	// named no recognized protocol keyword.
	DefaultProtocol string
	ResponseLimit   uint64 // 0 = unbounded
}

// protocolVersion returns req's protocol version, falling back to the
// builder's configured default when the request did not carry one.
func (b *Builder) protocolVersion(req RequestContext) string {
	if req.ProtocolVersion != "" {
		return req.ProtocolVersion
	}
	return b.cfg.DefaultProtocol
}

// Builder is the orchestrator (C8): it splits a CE, consults the function
// result cache, parses the residual CE, arms the timeout controller, writes
// MIME headers, and streams values through the binary encoder.
type Builder struct {
	cfg         Config
	cache       *rescache.Cache // nil disables caching entirely
	metrics     metrics.BuilderMetrics
	newTree     TreeFactory
	datasetPath func(datasetName string) string
}

// New constructs a Builder. cache may be nil to disable the function-result
// cache outright (every functional CE re-evaluates). newTree and
// datasetPath may be nil to use the package defaults (dapmodel.NewTree, and
// treating the dataset name as its own stat-able path).
func New(cfg Config, cache *rescache.Cache, m metrics.BuilderMetrics, newTree TreeFactory, datasetPath func(string) string) *Builder {
	if newTree == nil {
		newTree = func(root *dapmodel.Variable) dapmodel.VariableTree { return dapmodel.NewTree(root) }
	}
	if datasetPath == nil {
		datasetPath = func(name string) string { return name }
	}
	return &Builder{cfg: cfg, cache: cache, metrics: m, newTree: newTree, datasetPath: datasetPath}
}

// prepare runs the common algorithm shared by every data-bearing response
// kind (spec.md §4.8 steps 1-6): arm the timeout, split the CE, resolve the
// function sub-CE against the cache (or evaluate it), parse the residual CE
// against whichever tree results, validate the estimated size, and tag
// nested sequences. release must be called once the caller is done with the
// working tree, win or lose.
func (b *Builder) prepare(ctx context.Context, req RequestContext, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, requireData bool) (working dapmodel.VariableTree, release func(), err error) {
	release = func() {}

	logCtx := logger.NewLogContext("").WithDataset(req.DatasetName).WithCE(req.RawCE).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, logCtx)

	timeout.Arm(req.TimeoutSeconds, func() {})

	funcCE, residualCE := dapmodel.SplitCE(req.RawCE, evaluator)

	if funcCE == "" {
		applyDefaultProjection(tree, residualCE)
		if err := evaluator.ParseConstraint(residualCE, tree); err != nil {
			return nil, release, err
		}
		if evaluator.HasFunctionalExpression() && !requireData {
			return nil, release, dapcode.NewFunctionalOnlyInDataResponseError()
		}
		if err := b.checkSize(tree); err != nil {
			return nil, release, err
		}
		tree.TagNestedSequences()
		return tree, release, nil
	}

	if !requireData && strings.TrimSpace(residualCE) == "" {
		if err := evaluator.ParseConstraint(funcCE, tree); err != nil {
			return nil, release, err
		}
		if evaluator.HasFunctionalExpression() {
			return nil, release, dapcode.NewFunctionalOnlyInDataResponseError()
		}
	}

	working, release, err = b.resolveFunctionCE(ctx, req, funcCE, tree, evaluator)
	if err != nil {
		return nil, release, err
	}

	applyDefaultProjection(working, residualCE)
	if err := evaluator.ParseConstraint(residualCE, working); err != nil {
		release()
		return nil, func() {}, err
	}
	if evaluator.HasFunctionalExpression() && !requireData {
		release()
		return nil, func() {}, dapcode.NewFunctionalOnlyInDataResponseError()
	}
	if err := b.checkSize(working); err != nil {
		release()
		return nil, func() {}, err
	}
	working.TagNestedSequences()
	return working, release, nil
}

// resolveFunctionCE implements spec.md §4.6's cache state machine: read
// under a shared lock if a valid entry exists, otherwise race to create and
// exclusively lock it, evaluate the function clauses, write the entry, and
// downgrade to shared. release unlocks whatever lock was taken.
func (b *Builder) resolveFunctionCE(ctx context.Context, req RequestContext, funcCE string, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator) (dapmodel.VariableTree, func(), error) {
	ctx, span := telemetry.StartCacheSpan(ctx, "lookup", telemetry.FuncCE(funcCE))
	defer span.End()

	if b.cache == nil || !b.cache.Enabled() {
		telemetry.SetAttributes(ctx, telemetry.CacheState("disabled"))
		if err := evaluator.ParseConstraint(funcCE, tree); err != nil {
			return nil, func() {}, err
		}
		fTree, err := evaluator.EvalFunctionClauses(tree)
		if err != nil {
			return nil, func() {}, err
		}
		return fTree, func() {}, nil
	}

	key := rescache.CacheKey(req.DatasetName, funcCE)
	path := b.cache.PathFor(key)
	datasetPath := b.datasetPath(req.DatasetName)

	if !b.cache.IsValid(path, datasetPath) {
		if err := b.cache.Purge(path); err != nil {
			logger.WarnCtx(ctx, "responsebuilder: failed to purge stale cache entry", "path", path, "error", err)
		}
	}

	if ok, handle, err := b.cache.TryReadLock(path); err != nil {
		return nil, func() {}, err
	} else if ok {
		telemetry.SetAttributes(ctx, telemetry.CacheHit(true), telemetry.CacheState("hit"))
		fTree, err := b.readCacheHit(ctx, path, handle)
		return fTree, b.unlockFunc(ctx, handle), err
	}

	created, handle, err := b.cache.TryCreateAndExclusiveLock(path)
	if err != nil {
		return nil, func() {}, err
	}
	if created {
		telemetry.SetAttributes(ctx, telemetry.CacheHit(false), telemetry.CacheState("miss"))
		return b.buildCacheEntry(ctx, path, handle, funcCE, tree, evaluator)
	}

	// Lost the create race: someone else is building it. Retry a shared
	// read once; a persistent failure is a CacheError.
	if ok, handle, err := b.cache.TryReadLock(path); err != nil {
		return nil, func() {}, err
	} else if ok {
		telemetry.SetAttributes(ctx, telemetry.CacheHit(true), telemetry.CacheState("hit-after-race"))
		fTree, err := b.readCacheHit(ctx, path, handle)
		return fTree, b.unlockFunc(ctx, handle), err
	}

	return nil, func() {}, dapcode.NewCacheError(path, "could not obtain a lock after create and retry")
}

func (b *Builder) readCacheHit(ctx context.Context, path string, handle rescache.LockHandle) (dapmodel.VariableTree, error) {
	start := time.Now()
	fTree, err := readCacheEntry(path, b.newTree)
	metrics.ObserveRead(b.metrics2Cache(), 0, time.Since(start), err == nil)
	telemetry.RecordError(ctx, err)
	return fTree, err
}

func (b *Builder) buildCacheEntry(ctx context.Context, path string, handle rescache.LockHandle, funcCE string, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator) (dapmodel.VariableTree, func(), error) {
	ctx, span := telemetry.StartCacheSpan(ctx, "write", telemetry.FuncCE(funcCE))
	defer span.End()

	if err := evaluator.ParseConstraint(funcCE, tree); err != nil {
		b.cache.UnlockAndClose(handle)
		return nil, func() {}, err
	}
	fTree, err := evaluator.EvalFunctionClauses(tree)
	if err != nil {
		b.cache.UnlockAndClose(handle)
		return nil, func() {}, err
	}

	start := time.Now()
	writeErr := writeCacheEntry(path, fTree, evaluator)
	metrics.ObserveWrite(b.metrics2Cache(), 0, time.Since(start))
	if writeErr != nil {
		b.cache.UnlockAndClose(handle)
		telemetry.RecordError(ctx, writeErr)
		return nil, func() {}, dapcode.NewCacheError(path, writeErr.Error())
	}

	if err := b.cache.DowngradeToShared(handle); err != nil {
		b.cache.UnlockAndClose(handle)
		return nil, func() {}, err
	}

	total, err := b.cache.UpdateSizeInfo(path)
	if err == nil {
		telemetry.SetAttributes(ctx, telemetry.CacheSize(total))
		if b.cache.TooBig(total) {
			if evictErr := b.cache.EvictDown(path); evictErr != nil {
				logger.WarnCtx(ctx, "responsebuilder: eviction after cache write failed", "error", evictErr)
			}
		}
	}

	return fTree, b.unlockFunc(ctx, handle), nil
}

func (b *Builder) unlockFunc(ctx context.Context, handle rescache.LockHandle) func() {
	return func() {
		if err := b.cache.UnlockAndClose(handle); err != nil {
			logger.WarnCtx(ctx, "responsebuilder: failed to release cache lock", "path", handle.Path(), "error", err)
		}
	}
}

// metrics2Cache exposes the cache's own metrics sink so read/write timing —
// which only the builder knows how to measure, since it calls
// writeCacheEntry/readCacheEntry itself — still lands on the same
// CacheMetrics the Cache reports size and eviction counts to.
func (b *Builder) metrics2Cache() metrics.CacheMetrics {
	if b.cache == nil {
		return nil
	}
	return b.cache.Metrics()
}

// checkSize validates the constrained projection's estimated size against
// the configured response limit (spec.md §4.8 step 5, standardized to run
// on every data-bearing path).
func (b *Builder) checkSize(tree dapmodel.VariableTree) error {
	if b.cfg.ResponseLimit == 0 {
		return nil
	}
	size := tree.RequestSize(true)
	if size <= b.cfg.ResponseLimit {
		return nil
	}
	requestedKB := (size + 1023) / 1024
	limitKB := b.cfg.ResponseLimit / 1024
	return dapcode.NewRequestTooLargeError(requestedKB, limitKB)
}

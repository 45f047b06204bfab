package loader

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitsuite/packages/assertions"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/env"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
	"github.com/abdul-hamid-achik/hitsuite/packages/snapshot"
)

// Loader builds suite trees from documents.
type Loader struct {
	resolver   *env.Resolver
	listeners  *suite.Listeners
	logger     *zap.Logger
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	verbose    bool
	envFile    string
	// updateSnapshots writes snapshot expectations instead of failing.
	updateSnapshots bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithResolver sets the outermost variable scope.
func WithResolver(r *env.Resolver) Option {
	return func(l *Loader) { l.resolver = r }
}

// WithListeners attaches listeners to every loaded tree.
func WithListeners(ls *suite.Listeners) Option {
	return func(l *Loader) { l.listeners = ls }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithTimeout sets the timeout of specs and hooks that declare none.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithRetries sets the retry count and delay of specs that declare none.
func WithRetries(n int, delay time.Duration) Option {
	return func(l *Loader) {
		l.retries = n
		l.retryDelay = delay
	}
}

func WithVerbose(v bool) Option {
	return func(l *Loader) { l.verbose = v }
}

// WithUpdateSnapshots makes snapshot expectations record their values.
func WithUpdateSnapshots(update bool) Option {
	return func(l *Loader) { l.updateSnapshots = update }
}

// WithEnvFile loads variables from a .env file for every document, before
// the document's own env_file.
func WithEnvFile(path string) Option {
	return func(l *Loader) { l.envFile = path }
}

func New(opts ...Option) *Loader {
	l := &Loader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	if l.resolver == nil {
		l.resolver = env.NewResolver()
		l.resolver.SetWarnFunc(l.logger.Sugar().Warnf)
	}
	return l
}

// LoadFile reads, validates and builds the suite file at path. The root
// group is described by the document's description, or by the file name.
func (l *Loader) LoadFile(path string) (*suite.Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.File = path
		}
		return nil, err
	}
	if doc.Description == "" {
		doc.Description = SuiteName(path)
	}
	g, err := l.build(doc, filepath.Dir(path), snapshot.PathFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("loaded suite",
		zap.String("file", path),
		zap.Int("specs", doc.CountSpecs()),
	)
	return g, nil
}

// LoadFiles loads every file and composes them under one nameless root.
func (l *Loader) LoadFiles(paths []string) (*suite.Group, error) {
	groups := make([]*suite.Group, 0, len(paths))
	for _, path := range paths {
		g, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	root := suite.From(groups)
	root.SetLogger(l.logger)
	return root, nil
}

// ValidateFile parses and builds the file without running anything.
func (l *Loader) ValidateFile(path string) error {
	_, err := l.LoadFile(path)
	return err
}

// Build turns a parsed document into a tree. Relative paths and commands
// resolve against dir. Snapshots are kept under dir, in a file named after
// the document's description.
func (l *Loader) Build(doc *Document, dir string) (*suite.Group, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(doc.Description)), " ", "-")
	if name == "" {
		name = "suite"
	}
	return l.build(doc, dir, snapshot.PathFor(filepath.Join(dir, name+".suite.yaml")))
}

func (l *Loader) build(doc *Document, dir, snapshots string) (g *suite.Group, err error) {
	defer func() {
		// Construction misuse panics inside the tree builders.
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("building suite: %v", r)
		}
	}()

	scope := l.resolver
	shell := &Shell{Dir: dir, Verbose: l.verbose, Logger: l.logger}

	envFiles := []string{l.envFile}
	if doc.EnvFile != "" {
		envFiles = append(envFiles, resolvePath(dir, doc.EnvFile))
	}
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		vars, err := env.LoadDotEnv(file)
		if err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
		fileVars := make(map[string]any, len(vars))
		for k, v := range vars {
			fileVars[k] = v
			shell.Env = append(shell.Env, k+"="+v)
		}
		scope = scope.Child(fileVars)
	}
	scope = scoped(scope, doc.Variables)

	b := &builder{
		loader:    l,
		shell:     shell,
		client:    &http.Client{Timeout: 5 * time.Second},
		dir:       dir,
		snapshots: snapshot.NewStore(snapshots, l.updateSnapshots),
	}
	timeout := l.timeout
	if doc.Timeout > 0 {
		timeout = millis(doc.Timeout)
	}

	opts := []suite.GroupOption{suite.WithLogger(l.logger)}
	if l.listeners != nil {
		opts = append(opts, suite.WithListeners(l.listeners))
	}
	var root *suite.Group
	if description := scope.Resolve(doc.Description); description != "" {
		root = suite.New(description, opts...)
	} else {
		root = suite.Empty(opts...)
	}
	if doc.Timeout > 0 {
		root.Timeout(timeout)
	}
	tag(root, doc.Tags)
	b.waitFor(root, scope, doc.WaitFor)
	if err := b.body(root, scope, timeout, doc.Hooks, doc.Specs, doc.Groups); err != nil {
		return nil, err
	}
	return root, nil
}

// SuiteName derives a description from a suite file name.
func SuiteName(path string) string {
	name := filepath.Base(path)
	for _, ext := range suiteExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type builder struct {
	loader    *Loader
	shell     *Shell
	client    *http.Client
	dir       string
	snapshots *snapshot.Store
}

func (b *builder) body(g *suite.Group, scope *env.Resolver, timeout time.Duration, hooks Hooks, specs []SpecDoc, groups []GroupDoc) error {
	for _, cmd := range hooks.BeforeAll {
		g.BeforeAll(b.hook(scope, cmd, timeout))
	}
	for _, cmd := range hooks.AfterAll {
		g.AfterAll(b.hook(scope, cmd, timeout))
	}
	for _, cmd := range hooks.BeforeEach {
		g.BeforeEach(b.hook(scope, cmd, timeout))
	}
	for _, cmd := range hooks.AfterEach {
		g.AfterEach(b.hook(scope, cmd, timeout))
	}

	for _, doc := range specs {
		if err := b.spec(g, scope, timeout, doc); err != nil {
			return err
		}
	}
	for _, doc := range groups {
		if err := b.group(g, scope, timeout, doc); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) group(parent *suite.Group, scope *env.Resolver, timeout time.Duration, doc GroupDoc) error {
	scope = scoped(scope, doc.Variables)
	if doc.Timeout > 0 {
		timeout = millis(doc.Timeout)
	}
	opts := suite.Options{Skipped: doc.Skip, Focused: doc.Only}
	description := scope.Resolve(doc.Describe)

	var err error
	var g *suite.Group
	if doc.Each != nil {
		rows, _ := scope.ResolveValue(doc.Each).([]any)
		g = parent.DescribeEach(description, rows, func(rowGroup *suite.Group, row any) {
			if err == nil {
				rowScope := scope.Child(map[string]any{"row": row})
				b.waitFor(rowGroup, rowScope, doc.WaitFor)
				err = b.body(rowGroup, rowScope, timeout, doc.Hooks, doc.Specs, doc.Groups)
			}
		}, opts)
	} else {
		g = parent.Describe(description, func(child *suite.Group) {
			b.waitFor(child, scope, doc.WaitFor)
			err = b.body(child, scope, timeout, doc.Hooks, doc.Specs, doc.Groups)
		}, opts)
	}
	if err != nil {
		return err
	}
	if doc.Timeout > 0 {
		g.Timeout(timeout)
	}
	tag(g, doc.Tags)
	return nil
}

func (b *builder) spec(g *suite.Group, scope *env.Resolver, timeout time.Duration, doc SpecDoc) error {
	if doc.Timeout > 0 {
		timeout = millis(doc.Timeout)
	}
	opts := suite.Options{Skipped: doc.Skip, Focused: doc.Only}
	description := scope.Resolve(doc.It)

	var effect suite.Effect
	if strings.TrimSpace(doc.Run) != "" {
		checks, err := expectations(doc.Expect)
		if err != nil {
			return fmt.Errorf("spec %q: %w", description, err)
		}
		effect = b.specEffect(scope, doc, checks, timeout)
	}

	spec := g.It(description, effect, opts)
	if timeout > 0 {
		spec.Timeout(timeout)
	}
	for _, t := range doc.Tags {
		spec.Info(suite.Tag(t))
	}
	return nil
}

// waitFor registers the readiness poll as the group's first before-all hook.
func (b *builder) waitFor(g *suite.Group, scope *env.Resolver, doc *WaitForDoc) {
	if doc == nil {
		return
	}
	g.BeforeAll(func(ctx context.Context) error {
		return waitForService(ctx, b.client, scope.Resolve(doc.URL), *doc, b.loader.logger)
	})
}

func (b *builder) hook(scope *env.Resolver, command string, timeout time.Duration) suite.Effect {
	return func(ctx context.Context) error {
		return b.shell.Hook(ctx, scope.Resolve(command), timeout)
	}
}

// specEffect runs the spec command, retrying failed attempts, and checks
// its output. A non-zero exit fails the spec unless an exit_code
// expectation is present.
func (b *builder) specEffect(scope *env.Resolver, doc SpecDoc, checks []*assertions.Assertion, timeout time.Duration) suite.Effect {
	retries, delay := b.loader.retries, b.loader.retryDelay
	if doc.Retry > 0 {
		retries = doc.Retry
	}
	if doc.RetryDelay > 0 {
		delay = millis(doc.RetryDelay)
	}
	checksExitCode := slices.ContainsFunc(checks, func(a *assertions.Assertion) bool {
		return a.Subject == "exit_code"
	})

	return func(ctx context.Context) error {
		var lastErr error
		for attempt := 0; attempt <= retries; attempt++ {
			if attempt > 0 {
				b.loader.logger.Debug("retrying spec",
					zap.String("command", doc.Run),
					zap.Int("attempt", attempt),
					zap.Error(lastErr),
				)
				if err := sleep(ctx, delay); err != nil {
					return lastErr
				}
			}

			out, err := b.shell.Run(ctx, scope.Resolve(doc.Run), timeout)
			switch {
			case err != nil:
				lastErr = err
			case out.ExitCode != 0 && !checksExitCode:
				lastErr = &CommandError{Command: doc.Run, ExitCode: out.ExitCode, Output: string(out.Stderr)}
			default:
				lastErr = assertions.Check(out, resolveExpectations(scope, checks),
					assertions.WithBaseDir(b.dir),
					assertions.WithSnapshots(b.snapshots.Scope(specKey(ctx, doc.It))),
				)
			}
			if lastErr == nil {
				return nil
			}
			if len(doc.RetryOn) > 0 && (out == nil || !slices.Contains(doc.RetryOn, out.ExitCode)) {
				return lastErr
			}
		}
		return lastErr
	}
}

// specKey names the running spec by its prefixed description.
func specKey(ctx context.Context, fallback string) string {
	if spec, ok := suite.SpecFromContext(ctx); ok {
		return spec.Parent().Prefixed(spec.Description())
	}
	return fallback
}

func expectations(docs []ExpectDoc) ([]*assertions.Assertion, error) {
	out := make([]*assertions.Assertion, 0, len(docs))
	for _, d := range docs {
		op, err := assertions.ParseOperator(d.Operator)
		if err != nil {
			return nil, err
		}
		out = append(out, &assertions.Assertion{Subject: d.Subject, Operator: op, Expected: d.Value})
	}
	return out, nil
}

func resolveExpectations(scope *env.Resolver, checks []*assertions.Assertion) []*assertions.Assertion {
	out := make([]*assertions.Assertion, len(checks))
	for i, a := range checks {
		out[i] = &assertions.Assertion{
			Subject:  scope.Resolve(a.Subject),
			Operator: a.Operator,
			Expected: scope.ResolveValue(a.Expected),
		}
	}
	return out
}

// scoped returns a child of scope holding vars. Values may reference the
// enclosing scope and each other.
func scoped(scope *env.Resolver, vars map[string]any) *env.Resolver {
	child := scope.Child(vars)
	keys := slices.Sorted(maps.Keys(vars))
	for range keys {
		for _, k := range keys {
			v, _ := child.GetVariable(k)
			child.SetVariable(k, child.ResolveValue(v))
		}
	}
	return child
}

func tag(g *suite.Group, tags []string) {
	for _, t := range tags {
		g.Info(suite.Tag(t))
	}
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package orchestrator drives per-file translation: it retrieves context,
// calls the model with retries, validates the answers and falls back to
// deterministic demos when a file cannot be translated.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ziadkadry99/auto-migrate/internal/assemble"
	"github.com/ziadkadry99/auto-migrate/internal/detect"
	"github.com/ziadkadry99/auto-migrate/internal/lang"
	"github.com/ziadkadry99/auto-migrate/internal/llm"
	"github.com/ziadkadry99/auto-migrate/internal/prompt"
	"github.com/ziadkadry99/auto-migrate/internal/retriever"
	"github.com/ziadkadry99/auto-migrate/internal/store"
	"github.com/ziadkadry99/auto-migrate/internal/walker"
)

// ErrNoTargetLanguage is returned when neither the request nor its command
// names a target language.
var ErrNoTargetLanguage = errors.New("target language is required")

const (
	DefaultTimeout      = 60 * time.Second
	DefaultRetryTimeout = 30 * time.Second
)

// DefaultRetryDelays are the waits before each retry of a transient failure.
var DefaultRetryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}

// Retriever supplies the context chunks for a request.
type Retriever interface {
	Retrieve(ctx context.Context, sessionID, userID, query string) ([]retriever.Scored, error)
}

// Request asks for the session's code to be translated.
type Request struct {
	Session    string `json:"session"`
	User       string `json:"user,omitempty"`
	Command    string `json:"command,omitempty"`
	SourceLang string `json:"sourceLang,omitempty"`
	TargetLang string `json:"targetLang,omitempty"`
}

// File is one translated file.
type File struct {
	assemble.File
	IsDemo   bool      `json:"isDemo"`
	State    FileState `json:"state"`
	Attempts int       `json:"attempts"`

	history []FileState
}

// Result is the public translation result.
type Result struct {
	MigratedCode    string    `json:"migratedCode"`
	Summary         string    `json:"summary"`
	Changes         []string  `json:"changes"`
	Files           []File    `json:"files"`
	Warnings        []string  `json:"warnings"`
	Recommendations []string  `json:"recommendations"`
	IsDemo          bool      `json:"isDemo"`
	Pair            lang.Pair `json:"pair"`
	Usage           llm.Usage `json:"usage"`
	Cached          bool      `json:"cached,omitempty"`
}

func (r *Result) hasDemo() bool {
	if r.IsDemo {
		return true
	}
	for _, f := range r.Files {
		if f.IsDemo {
			return true
		}
	}
	return false
}

func (r *Result) clone() *Result {
	c := *r
	c.Changes = append([]string(nil), r.Changes...)
	c.Files = append([]File(nil), r.Files...)
	c.Warnings = append([]string(nil), r.Warnings...)
	c.Recommendations = append([]string(nil), r.Recommendations...)
	return &c
}

// Orchestrator translates sessions. It is safe for concurrent use.
type Orchestrator struct {
	provider     llm.Provider
	retriever    Retriever
	composer     *prompt.Composer
	detector     *detect.Detector
	timeout      time.Duration
	retryTimeout time.Duration
	retryDelays  []time.Duration
	minAnalytics int
	maxTokens    int
	concurrency  int
	cacheSize    int
	cache        *resultCache
	sleep        func(context.Context, time.Duration) error
	jitter       func(time.Duration) time.Duration
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts sets the deadline of the first call and of each retry.
func WithTimeouts(initial, retry time.Duration) Option {
	return func(o *Orchestrator) {
		if initial > 0 {
			o.timeout = initial
		}
		if retry > 0 {
			o.retryTimeout = retry
		}
	}
}

// WithRetryDelays sets the waits before each retry. Their count is the
// number of retries.
func WithRetryDelays(delays []time.Duration) Option {
	return func(o *Orchestrator) { o.retryDelays = delays }
}

// WithSleep replaces the function used to wait between retries.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithJitter replaces the function that perturbs retry delays.
func WithJitter(fn func(time.Duration) time.Duration) Option {
	return func(o *Orchestrator) { o.jitter = fn }
}

// WithMinAnalyticsChars sets the size floor for analytics schemas.
func WithMinAnalyticsChars(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.minAnalytics = n
		}
	}
}

// WithMaxTokens sets the completion limit per call.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// WithConcurrency bounds how many files are translated at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithCache enables the result cache with room for size results.
func WithCache(size int) Option {
	return func(o *Orchestrator) { o.cacheSize = size }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(provider llm.Provider, r Retriever, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		provider:     provider,
		retriever:    r,
		detector:     detect.New(),
		timeout:      DefaultTimeout,
		retryTimeout: DefaultRetryTimeout,
		retryDelays:  DefaultRetryDelays,
		minAnalytics: prompt.DefaultMinAnalyticsChars,
		maxTokens:    16384,
		concurrency:  4,
		sleep:        sleepCtx,
		jitter:       jitter,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.composer = prompt.NewComposer(o.minAnalytics)
	if o.cacheSize > 0 {
		c, err := newResultCache(o.cacheSize)
		if err != nil {
			return nil, err
		}
		o.cache = c
	}
	return o, nil
}

// Translate converts the session's code for req. It fails only when context
// cannot be retrieved or ctx ends; model failures become demo files.
func (o *Orchestrator) Translate(ctx context.Context, req Request) (*Result, error) {
	source := req.SourceLang
	target := req.TargetLang
	if source == "" {
		source = mentioned(fromLang, req.Command)
	}
	if target == "" {
		target = mentioned(toLang, req.Command)
	}
	if target == "" {
		return nil, ErrNoTargetLanguage
	}

	command := strings.TrimSpace(req.Command)
	if req.SourceLang != "" && req.TargetLang != "" {
		command = prompt.Command(lang.NewPair(req.SourceLang, req.TargetLang))
	}
	query := command
	if query == "" {
		query = prompt.Command(lang.NewPair(source, target))
	}

	chunks, err := o.retriever.Retrieve(ctx, req.Session, req.User, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if source == "" {
		source = o.dominantSyntax(chunks)
	}
	pair := lang.NewPair(source, target)
	if command == "" {
		command = prompt.Command(pair)
	}

	if len(chunks) == 0 {
		o.logger.Warn("no context for session", "session", req.Session, "pair", pair.String())
		return emptyResult(pair, fmt.Sprintf("No source code was found for session %s; showing a demo translation.", req.Session)), nil
	}

	if o.cache == nil {
		return o.translate(ctx, pair, command, chunks)
	}
	key := fingerprint(req.Session, req.User, pair, command, chunks)
	res, shared, err := o.cache.do(key, func() (*Result, error) {
		return o.translate(ctx, pair, command, chunks)
	})
	if err != nil {
		return nil, err
	}
	res.Cached = shared
	return res, nil
}

type fileGroup struct {
	path   string
	chunks []store.StoredChunk
}

func (o *Orchestrator) translate(ctx context.Context, pair lang.Pair, command string, scored []retriever.Scored) (*Result, error) {
	groups := groupByFile(scored)

	var eligible []fileGroup
	for _, g := range groups {
		if !isEligible(pair, g.path) {
			o.logger.Debug("skipping file", "file", g.path, "pair", pair.String())
			continue
		}
		eligible = append(eligible, g)
	}
	if len(eligible) == 0 {
		return emptyResult(pair, fmt.Sprintf("No retrieved files match source language %s; showing a demo translation.", pair.Source)), nil
	}

	outcomes := make([]fileOutcome, len(eligible))
	var quotaHit atomic.Bool
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
dispatch:
	for i, g := range eligible {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, g fileGroup) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = o.translateFile(ctx, pair, command, g, &quotaHit)
		}(i, g)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return o.aggregate(pair, outcomes), nil
}

// fileOutcome is everything one file contributes to the result.
type fileOutcome struct {
	file            File
	summary         string
	changes         []string
	warnings        []string
	recommendations []string
	usage           llm.Usage
}

func (o *Orchestrator) translateFile(ctx context.Context, pair lang.Pair, command string, g fileGroup, quotaHit *atomic.Bool) fileOutcome {
	run := &fileRun{state: StatePending, history: []FileState{StatePending}}
	out := fileOutcome{}
	logger := o.logger.With("file", g.path, "pair", pair.String())

	substitute := func(reason string) fileOutcome {
		run.to(StateDemoSubstituted)
		logger.Warn("substituting demo translation", "reason", reason)
		body := demoFor(pair)(g.path, sourceOf(g.chunks))
		out.file = run.file(assemble.Assemble(g.path, pair.Target, body))
		out.file.IsDemo = true
		out.warnings = append(out.warnings, fmt.Sprintf("%s: %s; a demo translation was substituted", g.path, reason))
		return out
	}

	if quotaHit.Load() {
		run.to(StateFatalFailure)
		return substitute("skipped because the provider quota is exhausted")
	}

	req := llm.CompletionRequest{
		Messages:    o.composer.Messages(command, g.chunks, pair),
		MaxTokens:   o.maxTokens,
		Temperature: 0.1,
		JSONMode:    !prompt.AllowsRawCode(pair, g.chunks),
	}
	resp, err := o.complete(ctx, run, req, &out.usage)
	if err != nil {
		if llm.Classify(err) == llm.ClassQuota {
			quotaHit.Store(true)
		}
		return substitute(fmt.Sprintf("model call failed (%s): %v", llm.Classify(err), err))
	}

	parsed := ParseResponse(resp.Content)
	code := parsed.Code()
	if strings.TrimSpace(code) == "" {
		run.to(StateFatalFailure)
		return substitute("model returned no code")
	}
	if pair.Analytics() {
		if err := ValidateAnalytics(code, o.minAnalytics); err != nil {
			run.to(StateFatalFailure)
			return substitute(err.Error())
		}
	}

	run.to(StateSucceeded)
	out.file = run.file(assemble.Assemble(g.path, pair.Target, code))
	out.summary = parsed.Summary
	out.changes = parsed.Changes
	out.warnings = parsed.Warnings
	out.recommendations = parsed.Recommendations
	logger.Debug("file translated", "attempts", run.attempts, "chars", len(code))
	return out
}

// complete calls the model, retrying transient failures after the
// configured delays. The first call gets timeout, retries retryTimeout.
func (o *Orchestrator) complete(ctx context.Context, run *fileRun, req llm.CompletionRequest, usage *llm.Usage) (*llm.CompletionResponse, error) {
	timeout := o.timeout
	for attempt := 0; ; attempt++ {
		run.to(StateCalling)
		run.attempts++
		resp, err := o.callWithTimeout(ctx, req, timeout)
		if err == nil {
			usage.Add(resp)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		class := llm.Classify(err)
		if class != llm.ClassTransient || attempt >= len(o.retryDelays) {
			run.to(StateFatalFailure)
			return nil, err
		}
		run.to(StateTransientFailure)

		delay := o.jitter(o.retryDelays[attempt])
		o.logger.Info("retrying transient model failure", "attempt", attempt+1, "delay", delay, "error", err)
		if err := o.sleep(ctx, delay); err != nil {
			return nil, err
		}
		timeout = o.retryTimeout
	}
}

// callWithTimeout races the provider call against its deadline, so a
// provider that ignores ctx cannot hold the file past the timeout.
func (o *Orchestrator) callWithTimeout(ctx context.Context, req llm.CompletionRequest, timeout time.Duration) (*llm.CompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		resp *llm.CompletionResponse
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := o.provider.Complete(callCtx, req)
		done <- reply{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-callCtx.Done():
		return nil, fmt.Errorf("model call: %w", callCtx.Err())
	}
}

func (o *Orchestrator) aggregate(pair lang.Pair, outcomes []fileOutcome) *Result {
	res := &Result{
		Pair:            pair,
		Changes:         []string{},
		Files:           make([]File, 0, len(outcomes)),
		Warnings:        []string{},
		Recommendations: []string{},
	}

	demosUsed := 0
	var summaries []string
	for _, oc := range outcomes {
		res.Files = append(res.Files, oc.file)
		if oc.file.IsDemo {
			demosUsed++
		}
		if oc.summary != "" {
			summaries = append(summaries, oc.summary)
		}
		for _, c := range oc.changes {
			if len(outcomes) > 1 {
				c = oc.file.Filename + ": " + c
			}
			res.Changes = append(res.Changes, c)
		}
		res.Warnings = append(res.Warnings, oc.warnings...)
		res.Recommendations = appendUnique(res.Recommendations, oc.recommendations...)
		res.Usage.InputTokens += oc.usage.InputTokens
		res.Usage.OutputTokens += oc.usage.OutputTokens
		res.Usage.CostUSD += oc.usage.CostUSD
	}

	res.MigratedCode = res.Files[0].Content
	res.IsDemo = demosUsed == len(outcomes)
	switch {
	case len(outcomes) == 1 && len(summaries) == 1:
		res.Summary = summaries[0]
	default:
		res.Summary = fmt.Sprintf("Translated %d file(s) from %s to %s.", len(outcomes)-demosUsed, pair.Source, pair.Target)
		if demosUsed > 0 {
			res.Summary += fmt.Sprintf(" %d file(s) fell back to demo translations.", demosUsed)
		}
		if len(summaries) > 0 {
			res.Summary += " " + strings.Join(summaries, " ")
		}
	}
	return res
}

func emptyResult(pair lang.Pair, warning string) *Result {
	return &Result{
		MigratedCode:    demoFor(pair)("example"+lang.Extension(pair.Source), ""),
		Summary:         "No translatable source was available.",
		Changes:         []string{},
		Files:           []File{},
		Warnings:        []string{warning},
		Recommendations: []string{},
		IsDemo:          true,
		Pair:            pair,
	}
}

// groupByFile keeps the retrieval order of files and orders each file's
// chunks by line.
func groupByFile(scored []retriever.Scored) []fileGroup {
	index := make(map[string]int)
	var groups []fileGroup
	for _, s := range scored {
		i, ok := index[s.FilePath]
		if !ok {
			i = len(groups)
			index[s.FilePath] = i
			groups = append(groups, fileGroup{path: s.FilePath})
		}
		groups[i].chunks = append(groups[i].chunks, s.StoredChunk)
	}
	for _, g := range groups {
		sort.SliceStable(g.chunks, func(a, b int) bool { return g.chunks[a].StartLine < g.chunks[b].StartLine })
	}
	return groups
}

// isEligible skips binary assets, and for a known source language every file
// it does not own. Static assets therefore pass only when the pair names
// their type as its source.
func isEligible(pair lang.Pair, path string) bool {
	if walker.IsBinaryAsset(path) {
		return false
	}
	if _, known := lang.Lookup(pair.Source); known {
		return lang.Accepts(pair.Source, path)
	}
	return !walker.IsStaticAsset(path)
}

// sourceOf joins a file's chunks, dropping chunks nested in earlier ones.
func sourceOf(chunks []store.StoredChunk) string {
	var sb strings.Builder
	last := 0
	for _, c := range chunks {
		if c.StartLine <= last {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(c.Content)
		last = c.EndLine
	}
	return sb.String()
}

// dominantSyntax detects the syntax of the retrieved files and returns the
// most common one.
func (o *Orchestrator) dominantSyntax(chunks []retriever.Scored) string {
	counts := make(map[string]int)
	for _, g := range groupByFile(chunks) {
		r := o.detector.Detect(g.path, sourceOf(g.chunks))
		if r.SyntaxDetected {
			counts[r.Syntax]++
		}
	}
	best, bestN := "", 0
	for syntax, n := range counts {
		if n > bestN || n == bestN && syntax < best {
			best, bestN = syntax, n
		}
	}
	return best
}

var (
	fromLang = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z][A-Za-z0-9#+.-]*(?:\s[0-9])?)`)
	toLang   = regexp.MustCompile(`(?i)\b(?:to|into)\s+([A-Za-z][A-Za-z0-9#+.-]*(?:\s[0-9])?)`)
)

// mentioned returns the first known language captured by re in command.
func mentioned(re *regexp.Regexp, command string) string {
	for _, m := range re.FindAllStringSubmatch(command, -1) {
		name := strings.TrimRight(m[1], ".")
		if _, ok := lang.Lookup(name); ok {
			return name
		}
		if first, _, found := strings.Cut(name, " "); found {
			if _, ok := lang.Lookup(first); ok {
				return first
			}
		}
	}
	return ""
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter adds up to 10% to d.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + rand.N(d/10+1)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/webterm/internal/agent"
	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/tools"
)

// DefaultProbeTimeout bounds the reachability probe.
const DefaultProbeTimeout = 6 * time.Second

// NoTreeReply answers Ask when nothing has been scanned or loaded.
const NoTreeReply = "SiteTree not found. Please scan a site first."

// TaskPrompt is the instruction a scan task sends to the model.
func TaskPrompt(rootURL string) string {
	return "Scan the website and build a SiteTree of all relevant sub-pages. " +
		"For each page: set a concise description and store clickable elements under `buttons` " +
		"as objects with `selector` and `text`. " +
		"Start from: " + rootURL + "."
}

// SnapshotStore persists the outcome of finished scans.
type SnapshotStore interface {
	SaveTree(ctx context.Context, report *model.ScanReport) (string, error)
}

// Service is the state of one session. It is safe for concurrent use.
type Service struct {
	model          agent.Model
	registry       *tools.Registry
	budget         int
	requestTimeout time.Duration
	store          SnapshotStore
	probeClient    *http.Client
	probeTimeout   time.Duration
	logger         *slog.Logger
	now            func() time.Time

	// mu guards the tree state.
	mu      sync.Mutex
	tree    *model.SiteTree
	rootURL string
	last    *model.ScanReport
	chat    *agent.Loop

	// chatMu serializes Ask; a Loop is single-threaded.
	chatMu sync.Mutex

	// busyMu guards the running task.
	busyMu sync.Mutex
	busy   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithToolCallBudget sets the tool-call budget of each scan task.
func WithToolCallBudget(n int) Option {
	return func(s *Service) {
		s.budget = max(0, n)
	}
}

// WithRequestTimeout bounds every model round trip of a task.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.requestTimeout = d
	}
}

// WithStore persists a snapshot of every finished scan.
func WithStore(store SnapshotStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithReachabilityProbe makes StartScan check the site with client first.
func WithReachabilityProbe(client *http.Client, timeout time.Duration) Option {
	return func(s *Service) {
		s.probeClient = client
		if timeout > 0 {
			s.probeTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service that runs tasks with m and the tools in registry.
func New(m agent.Model, registry *tools.Registry, opts ...Option) *Service {
	s := &Service{
		model:          m,
		registry:       registry,
		budget:         agent.DefaultToolCallBudget,
		requestTimeout: agent.DefaultRequestTimeout,
		probeTimeout:   DefaultProbeTimeout,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartScan starts a scan task for rawURL and returns its ID.
// The task runs until it finishes, Cancel is called, or ctx ends.
// Previous state is discarded when the task starts.
func (s *Service) StartScan(ctx context.Context, rawURL string) (string, error) {
	root := model.NormalizeURL(rawURL)
	if root == "" {
		return "", ErrEmptyURL
	}
	if s.probeClient != nil {
		if err := s.probe(ctx, root); err != nil {
			return "", err
		}
	}

	s.busyMu.Lock()
	if s.busy {
		s.busyMu.Unlock()
		return "", ErrBusy
	}
	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.busy, s.cancel, s.done = true, cancel, done
	s.busyMu.Unlock()

	report := &model.ScanReport{
		ID:        uuid.NewString(),
		RootURL:   root,
		StartedAt: s.now(),
	}

	s.mu.Lock()
	s.tree, s.rootURL, s.last, s.chat = nil, root, nil, nil
	s.mu.Unlock()

	s.logger.Info("scan started", "id", report.ID, "url", root, "budget", s.budget)
	go s.run(taskCtx, report, done)
	return report.ID, nil
}

// run drives one scan task to completion.
func (s *Service) run(ctx context.Context, report *model.ScanReport, done chan struct{}) {
	defer func() {
		s.busyMu.Lock()
		s.busy, s.cancel = false, nil
		s.busyMu.Unlock()
		close(done)
	}()

	loop := agent.NewLoop(s.model, s.registry,
		agent.WithRequestTimeout(s.requestTimeout),
		agent.WithLogger(s.logger),
		agent.WithTreeObserver(s.adopt),
	)
	text, err := loop.Run(ctx, TaskPrompt(report.RootURL), s.budget)

	report.FinishedAt = s.now()
	report.ToolCalls = loop.ToolCallsExecuted()
	report.FinalText = text
	report.Outcome = outcomeOf(loop.State())
	if err != nil {
		report.Error = err.Error()
	}
	if tree := loop.Tree(); tree != nil {
		report.Tree = tree.Clone()
		s.adopt(tree)
	}

	if s.store != nil && report.Tree != nil {
		// The snapshot is written even when the task was cancelled.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if _, err := s.store.SaveTree(storeCtx, report); err != nil {
			s.logger.Warn("failed to persist site tree", "id", report.ID, "error", err)
		}
		cancel()
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	s.logger.Info("scan finished",
		"id", report.ID,
		"outcome", report.Outcome,
		"tool_calls", report.ToolCalls,
		"duration", report.Duration(),
	)
}

// adopt publishes tree as the current tree and follows its root.
func (s *Service) adopt(tree *model.SiteTree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	if tree.Root() != "" {
		s.rootURL = tree.Root()
	}
}

func outcomeOf(state agent.State) model.Outcome {
	switch state {
	case agent.StateDone:
		return model.OutcomeDone
	case agent.StateBudgetExhausted:
		return model.OutcomeBudgetExhausted
	case agent.StateCancelled:
		return model.OutcomeCancelled
	default:
		return model.OutcomeError
	}
}

// probe checks that root answers with a status below 400. HEAD is tried
// first; sites that reject HEAD get a GET.
func (s *Service) probe(ctx context.Context, root string) error {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	status, err := s.probeOnce(ctx, http.MethodHead, root)
	if err != nil || status >= http.StatusBadRequest {
		status, err = s.probeOnce(ctx, http.MethodGet, root)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, root, err)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s: HTTP status %d", ErrUnreachable, root, status)
	}
	return nil
}

func (s *Service) probeOnce(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.probeClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close() //nolint:errcheck // only the status is used
	return resp.StatusCode, nil
}

// Busy reports whether a scan task is running.
func (s *Service) Busy() bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	return s.busy
}

// Cancel stops the running task, if any. It does not wait; use Wait.
func (s *Service) Cancel() {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the current task (if any) has finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	s.busyMu.Lock()
	done := s.done
	s.busyMu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tree returns a copy of the current tree.
func (s *Service) Tree() (*model.SiteTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return nil, ErrNoTree
	}
	return s.tree.Clone(), nil
}

// RootURL returns the root URL of the current session, or "".
func (s *Service) RootURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootURL
}

// Rows returns the display rows of the current tree.
func (s *Service) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildRows(s.tree, s.rootURL)
}

// LastReport returns the report of the last finished task, or nil.
func (s *Service) LastReport() *model.ScanReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// DefaultTreeFile returns the file name Save uses for root when none is given:
// the first label of the host plus ".json".
func DefaultTreeFile(root string) string {
	host := "site"
	if u, err := url.Parse(root); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	return host + ".json"
}

// Save writes the current tree to path, or to DefaultTreeFile when path is
// empty, and returns the path written.
func (s *Service) Save(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil || s.rootURL == "" {
		return "", ErrNoTree
	}
	if path == "" {
		path = DefaultTreeFile(s.rootURL)
	}
	if err := s.tree.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Load replaces the current tree with the tree stored at path.
func (s *Service) Load(path string) error {
	if s.Busy() {
		return ErrBusy
	}
	tree, err := model.LoadSiteTree(path)
	if err != nil {
		return err
	}
	if tree.Root() == "" {
		return fmt.Errorf("%w: %s", ErrTreeWithoutRoot, path)
	}

	return s.Restore(tree)
}

// Restore replaces the current tree with a copy of tree, for example a
// snapshot read from the database. Trees without a root are rejected.
func (s *Service) Restore(tree *model.SiteTree) error {
	if s.Busy() {
		return ErrBusy
	}
	if tree == nil || tree.Root() == "" {
		return ErrTreeWithoutRoot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree, s.rootURL, s.chat = tree.Clone(), tree.Root(), nil
	return nil
}

// Clear drops the current tree, root URL, report and chat.
func (s *Service) Clear() error {
	if s.Busy() {
		return ErrBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree, s.rootURL, s.last, s.chat = nil, "", nil, nil
	return nil
}

// Ask answers a question about the current site from the tree alone.
// The conversation continues across calls until the tree is replaced.
// Questions are answered one at a time.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	s.mu.Lock()
	if s.tree == nil {
		s.mu.Unlock()
		return NoTreeReply, nil
	}
	if s.chat == nil {
		prompt, err := assistantPrompt(s.tree, s.now())
		if err != nil {
			s.mu.Unlock()
			return "", err
		}
		s.chat = agent.NewLoop(s.model, nil,
			agent.WithSystemPrompt(prompt),
			agent.WithRequestTimeout(s.requestTimeout),
			agent.WithLogger(s.logger),
		)
	}
	chat := s.chat
	s.mu.Unlock()

	reply, err := chat.Run(ctx, question, 0)
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return reply, nil
}

// assistantPrompt grounds the chat in the tree's JSON.
func assistantPrompt(tree *model.SiteTree, now time.Time) (string, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return "", err
	}
	site := SiteLabel(tree.Root())
	return fmt.Sprintf("The current time is %s. "+
		"You are a website assistant. Answer using only the provided SiteTree data. "+
		"Answer the user's exact question first and keep answers concise. "+
		"Do not list all pages or buttons unless the user asks for them. "+
		"If the user asks something unrelated, reply exactly: \"Sorry, I can only discuss content related to %s.\""+
		"\n\nSiteTree JSON:\n%s", now.Format(time.RFC3339), site, data), nil
}

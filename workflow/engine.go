// Package workflow owns the four-stage authoring state machine: topic
// generation, post setup, per-paragraph image customization, and results.
// All mutation goes through Engine methods; the presentation layer only
// renders State snapshots.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"blog_visual_assistant/generator"
	"blog_visual_assistant/search"
)

// Generator is the slice of generation capabilities the engine drives.
// *generator.Agent satisfies it.
type Generator interface {
	TopicIdeas(ctx context.Context, keyword string, subKeywords, refTitles []string) ([]string, error)
	WriteDraft(ctx context.Context, title string) (generator.Draft, error)
	Personalize(ctx context.Context, body, name string) (string, error)
	SplitParagraphs(ctx context.Context, body string, n int) ([]string, error)
	DerivePrompt(ctx context.Context, paragraph string) (string, error)
	Translate(ctx context.Context, text string) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	EditImage(ctx context.Context, image []byte, mimeType, directive string) ([]byte, error)
}

// Searcher is the blog-search port. *search.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, creds search.Credentials) ([]search.Hit, error)
}

// SettingsPort is the read side of the persisted settings store.
type SettingsPort interface {
	Get(key string) (string, bool, error)
}

// Settings keys the engine reads for search credentials.
const (
	KeySearchClientID     = "search_client_id"
	KeySearchClientSecret = "search_client_secret"
)

const (
	// MaxParagraphs bounds the setup paragraph count.
	MaxParagraphs = 10
	// MaxUploadBytes bounds a single uploaded image (8 MiB).
	MaxUploadBytes = 8 << 20
)

var allowedUploadMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Engine sequences the workflow. Long-running intents hold a single
// in-flight slot so a double-submit is rejected rather than queued; a
// reset while an operation is suspended on the network bumps the epoch,
// and the stale writeback is discarded.
type Engine struct {
	gen      Generator
	searcher Searcher
	settings SettingsPort

	inflight *semaphore.Weighted

	mu         sync.Mutex
	epoch      int
	stage      Stage
	hits       []search.Hit
	topics     []string
	draft      DraftPost
	uploadFlow bool
	paragraphs []*ParagraphResult
	advisories []string
}

func New(gen Generator, searcher Searcher, settings SettingsPort) *Engine {
	return &Engine{
		gen:      gen,
		searcher: searcher,
		settings: settings,
		inflight: semaphore.NewWeighted(1),
	}
}

// State returns a snapshot safe to hand to the presentation layer.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Stage:       e.stage,
		SearchHits:  append([]search.Hit(nil), e.hits...),
		Topics:      append([]string(nil), e.topics...),
		Draft:       e.draft,
		UploadFlow:  e.uploadFlow,
		Advisories:  append([]string(nil), e.advisories...),
		CanFinalize: e.stage == StageImageCustomization && e.canFinalizeLocked(),
	}
	for _, p := range e.paragraphs {
		st.Paragraphs = append(st.Paragraphs, *p)
	}
	return st
}

// Reset returns to TopicGeneration and clears everything, from any stage.
// An operation still suspended on the network sees the epoch bump and
// discards its result.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.stage = StageTopicGeneration
	e.hits = nil
	e.topics = nil
	e.draft = DraftPost{}
	e.uploadFlow = false
	e.paragraphs = nil
	e.advisories = nil
}

// DismissAdvisory drops one advisory by index.
func (e *Engine) DismissAdvisory(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.advisories) {
		return validationf("no advisory at index %d", i)
	}
	e.advisories = append(e.advisories[:i], e.advisories[i+1:]...)
	return nil
}

// RunSearch queries the blog-search backend and replaces the hit list on
// success. Missing credentials or a failed call surface as an advisory,
// never as a fatal error: search is optional context.
func (e *Engine) RunSearch(ctx context.Context, query string) error {
	if !e.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer e.inflight.Release(1)

	epoch, err := e.begin(StageTopicGeneration)
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return validationf("search query must not be empty")
	}

	hits, ok := e.searchWithAdvisory(ctx, query)
	if !ok {
		return nil
	}
	e.commit(epoch, func() { e.hits = hits })
	return nil
}

// GenerateTopics produces exactly 3 candidate titles. When no search hits
// are loaded yet it tries one search itself; that search failing (or the
// credentials being absent) degrades to the context-free prompt with one
// advisory. Only the ideation call itself is fatal to the stage.
func (e *Engine) GenerateTopics(ctx context.Context, keyword string, subKeywords []string) ([]string, error) {
	if !e.inflight.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer e.inflight.Release(1)

	epoch, err := e.begin(StageTopicGeneration)
	if err != nil {
		return nil, err
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, validationf("main keyword must not be empty")
	}

	e.mu.Lock()
	refs := hitTitles(e.hits)
	e.mu.Unlock()
	if len(refs) == 0 {
		if hits, ok := e.searchWithAdvisory(ctx, keyword); ok {
			e.commit(epoch, func() { e.hits = hits })
			refs = hitTitles(hits)
		}
	}

	titles, err := e.gen.TopicIdeas(ctx, keyword, subKeywords, refs)
	if err != nil {
		e.commit(epoch, func() { e.topics = nil })
		return nil, err
	}
	e.commit(epoch, func() { e.topics = titles })
	return titles, nil
}

// SelectTopic drafts a full post from the chosen candidate and, on success,
// advances to the post-setup stage. On failure the candidate list is
// cleared and the stage does not change.
func (e *Engine) SelectTopic(ctx context.Context, title string) error {
	if !e.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer e.inflight.Release(1)

	epoch, err := e.begin(StageTopicGeneration)
	if err != nil {
		return err
	}
	e.mu.Lock()
	known := contains(e.topics, title)
	e.mu.Unlock()
	if !known {
		return validationf("title is not one of the generated candidates")
	}

	draft, err := e.gen.WriteDraft(ctx, title)
	if err != nil {
		e.commit(epoch, func() { e.topics = nil })
		return err
	}
	e.commit(epoch, func() {
		e.draft = DraftPost{Title: draft.Title, Body: draft.Body}
		e.stage = StagePostSetup
	})
	return nil
}

// SubmitSetup takes the (possibly user-edited) body, the paragraph count,
// an optional personalization name and the image-source choice. The body is
// rewritten first when a name is given, then segmented into exactly count
// paragraphs. Success advances to image customization; any failure keeps
// the stage and discards the paragraph collection.
func (e *Engine) SubmitSetup(ctx context.Context, body string, count int, name, source string) error {
	if !e.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer e.inflight.Release(1)

	epoch, err := e.begin(StagePostSetup)
	if err != nil {
		return err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return validationf("post body must not be empty")
	}
	if count < 1 || count > MaxParagraphs {
		return validationf("paragraph count must be between 1 and %d", MaxParagraphs)
	}
	if source != "generate" && source != "upload" {
		return validationf("image source must be \"generate\" or \"upload\"")
	}

	name = strings.TrimSpace(name)
	if name != "" {
		rewritten, err := e.gen.Personalize(ctx, body, name)
		if err != nil {
			return err
		}
		body = rewritten
	}
	e.commit(epoch, func() { e.draft.Body = body })

	segs, err := e.gen.SplitParagraphs(ctx, body, count)
	if err != nil {
		e.commit(epoch, func() { e.paragraphs = nil })
		return err
	}

	paragraphs := make([]*ParagraphResult, len(segs))
	for i, text := range segs {
		paragraphs[i] = &ParagraphResult{Text: text, Source: SourceUnset, EditStage: EditPending}
	}
	e.commit(epoch, func() {
		e.paragraphs = paragraphs
		e.uploadFlow = source == "upload"
		e.stage = StageImageCustomization
	})
	return nil
}

// Upload attaches an image to paragraph i. Local only: decodes nothing,
// stores the bytes plus a displayable encoding, and tags the entry as
// user-uploaded.
func (e *Engine) Upload(i int, data []byte, mimeType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage != StageImageCustomization {
		return validationf("uploads are only accepted during image customization")
	}
	p, err := e.paragraphLocked(i)
	if err != nil {
		return err
	}
	if p.EditStage == EditFinalized {
		return validationf("paragraph %d is already finalized", i)
	}
	if p.EditStage == EditTranslating {
		return validationf("paragraph %d is waiting on a translation", i)
	}
	if len(data) == 0 {
		return validationf("uploaded file is empty")
	}
	if len(data) > MaxUploadBytes {
		return validationf("uploaded file exceeds %d bytes", MaxUploadBytes)
	}
	if !allowedUploadMIME[mimeType] {
		return validationf("unsupported image type %q (png, jpeg or webp)", mimeType)
	}

	p.UploadedBytes = data
	p.UploadedMIME = mimeType
	p.UploadedEncoded = dataURI(mimeType, data)
	p.Source = SourceUserUpload
	p.EditStage = EditUploaded
	return nil
}

// SetEditMode records the user's choice for an uploaded image:
// "keep" uses it unchanged, "edit" opens the directive path.
func (e *Engine) SetEditMode(i int, mode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage != StageImageCustomization {
		return validationf("edit mode can only change during image customization")
	}
	p, err := e.paragraphLocked(i)
	if err != nil {
		return err
	}
	if p.Source != SourceUserUpload {
		return validationf("paragraph %d has no uploaded image", i)
	}
	if p.EditStage == EditFinalized || p.EditStage == EditTranslating {
		return validationf("paragraph %d cannot change mode in state %s", i, p.EditStage)
	}
	switch mode {
	case "keep":
		p.EditStage = EditKeepOriginal
	case "edit":
		p.EditStage = EditEditing
	default:
		return validationf("edit mode must be \"keep\" or \"edit\"")
	}
	return nil
}

// SetDirective stores the free-text edit instruction. Pure local mutation.
func (e *Engine) SetDirective(i int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage != StageImageCustomization {
		return validationf("directives can only change during image customization")
	}
	p, err := e.paragraphLocked(i)
	if err != nil {
		return err
	}
	if p.EditStage != EditEditing {
		return validationf("paragraph %d is not in editing mode", i)
	}
	p.Directive = text
	return nil
}

// TranslateDirective translates paragraph i's directive in place. Failure
// is local-only: the entry returns to editing with the previous directive
// and the error is surfaced, without any stage transition.
func (e *Engine) TranslateDirective(ctx context.Context, i int) error {
	if !e.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer e.inflight.Release(1)

	e.mu.Lock()
	if e.stage != StageImageCustomization {
		e.mu.Unlock()
		return validationf("directives can only change during image customization")
	}
	p, err := e.paragraphLocked(i)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if p.EditStage != EditEditing {
		e.mu.Unlock()
		return validationf("paragraph %d is not in editing mode", i)
	}
	if strings.TrimSpace(p.Directive) == "" {
		e.mu.Unlock()
		return validationf("edit directive must not be empty")
	}
	directive := p.Directive
	epoch := e.epoch
	p.EditStage = EditTranslating
	e.mu.Unlock()

	translated, err := e.gen.Translate(ctx, directive)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil
	}
	p.EditStage = EditEditing
	if err != nil {
		return err
	}
	p.Directive = translated
	return nil
}

// --- helpers ---

// begin validates the active stage and returns the current epoch for
// later commits.
func (e *Engine) begin(want Stage) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage != want {
		return 0, validationf("intent is not valid in stage %s", e.stage)
	}
	return e.epoch, nil
}

// commit applies fn under the lock unless a reset happened since epoch
// was captured.
func (e *Engine) commit(epoch int, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return false
	}
	fn()
	return true
}

func (e *Engine) addAdvisory(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advisories = append(e.advisories, msg)
}

// searchWithAdvisory runs one search; any obstacle becomes an advisory
// and ok=false so callers fall back to the context-free path.
func (e *Engine) searchWithAdvisory(ctx context.Context, query string) ([]search.Hit, bool) {
	creds, err := e.credentials()
	if err != nil {
		e.addAdvisory(fmt.Sprintf("could not read search credentials: %v", err))
		return nil, false
	}
	if creds.ID == "" || creds.Secret == "" {
		e.addAdvisory("search credentials are not configured; continuing without live search results")
		return nil, false
	}
	hits, err := e.searcher.Search(ctx, query, creds)
	if err != nil {
		e.addAdvisory(fmt.Sprintf("blog search failed: %v; continuing without live search results", err))
		return nil, false
	}
	return hits, true
}

func (e *Engine) credentials() (search.Credentials, error) {
	id, _, err := e.settings.Get(KeySearchClientID)
	if err != nil {
		return search.Credentials{}, err
	}
	secret, _, err := e.settings.Get(KeySearchClientSecret)
	if err != nil {
		return search.Credentials{}, err
	}
	return search.Credentials{ID: id, Secret: secret}, nil
}

func (e *Engine) paragraphLocked(i int) (*ParagraphResult, error) {
	if i < 0 || i >= len(e.paragraphs) {
		return nil, validationf("no paragraph at index %d", i)
	}
	return e.paragraphs[i], nil
}

func (e *Engine) canFinalizeLocked() bool {
	if len(e.paragraphs) == 0 {
		return false
	}
	for _, p := range e.paragraphs {
		if !p.resolved() {
			return false
		}
	}
	return true
}

func hitTitles(hits []search.Hit) []string {
	titles := make([]string, 0, len(hits))
	for _, h := range hits {
		titles = append(titles, h.Title)
	}
	return titles
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

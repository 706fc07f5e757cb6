package simplepublish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-publish/pkg/simplepublish/objectkey"
	"github.com/tendant/simple-publish/pkg/simplepublish/slug"
	"github.com/tendant/simple-publish/pkg/simplepublish/urlstrategy"
)

// Operation names reported to the event sink and logs.
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpUploadAvatar = "upload_avatar"
)

// SummaryLength is the number of characters of content used as the summary
// when none is supplied.
const SummaryLength = 200

// Prefixes are the object key prefixes per asset kind.
type Prefixes struct {
	Images  string
	PDFs    string
	Avatars string
}

// DefaultPrefixes returns the prefixes used when none are configured.
func DefaultPrefixes() Prefixes {
	return Prefixes{Images: "content-images", PDFs: "content-pdfs", Avatars: "avatars"}
}

// AvatarKey is the fixed object key holding the site avatar.
func (p Prefixes) AvatarKey() string {
	return strings.TrimSuffix(p.Avatars, "/") + "/" + AvatarFileName
}

// service implements the Service interface
type service struct {
	store    Store
	gateway  *Gateway
	locker   slug.Locker
	logger   *slog.Logger
	events   EventSink
	prefixes Prefixes

	profileName  string
	profileEmail string

	// used to assemble a gateway when none is given
	blobStore   BlobStore
	backendName string
	keys        objectkey.Generator
	urls        urlstrategy.URLStrategy
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the content and profile store
func WithRepository(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithBlobStore sets the object storage backend
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobStore = store
	}
}

// WithGateway sets a fully assembled gateway, overriding WithBlobStore
func WithGateway(gateway *Gateway) Option {
	return func(s *service) {
		s.gateway = gateway
	}
}

// WithKeyGenerator sets the object key layout
func WithKeyGenerator(keys objectkey.Generator) Option {
	return func(s *service) {
		s.keys = keys
	}
}

// WithURLStrategy sets how public URLs are derived from keys
func WithURLStrategy(urls urlstrategy.URLStrategy) Option {
	return func(s *service) {
		s.urls = urls
	}
}

// WithSlugLocker serialises slug allocation across requests and instances
func WithSlugLocker(locker slug.Locker) Option {
	return func(s *service) {
		s.locker = locker
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.events = sink
	}
}

// WithPrefixes sets the object key prefixes. Empty fields keep their default.
func WithPrefixes(p Prefixes) Option {
	return func(s *service) {
		if p.Images != "" {
			s.prefixes.Images = p.Images
		}
		if p.PDFs != "" {
			s.prefixes.PDFs = p.PDFs
		}
		if p.Avatars != "" {
			s.prefixes.Avatars = p.Avatars
		}
	}
}

// WithProfileInfo sets the display name and e-mail returned with the profile
func WithProfileInfo(name, email string) Option {
	return func(s *service) {
		s.profileName = name
		s.profileEmail = email
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		locker:   slug.NoopLocker{},
		events:   NewNoopEventSink(),
		prefixes: DefaultPrefixes(),
	}
	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.gateway == nil {
		if s.blobStore == nil {
			return nil, fmt.Errorf("blob store is required")
		}
		s.gateway = NewGateway(s.blobStore, s.backendName, s.keys, s.urls)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "simplepublish")
	return s, nil
}

// Content operations

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (item *ContentItem, err error) {
	defer func() { s.events.OperationFinished(ctx, OpCreate, req.Category, err) }()
	fail := func(err error) error {
		return &ContentError{Category: req.Category, Op: OpCreate, Err: err}
	}

	if err := validateCreate(req); err != nil {
		return nil, fail(err)
	}

	sg := newSaga(OpCreate, s.logger, s.events)
	cover, err := s.gateway.Put(ctx, req.Cover, s.prefixes.Images)
	if err != nil {
		return nil, fail(err)
	}
	sg.record(sagaActionDeleteCover, cover.Key, s.compensateDelete(cover.Key))

	pdf, err := s.gateway.Put(ctx, req.PDF, s.prefixes.PDFs)
	if err != nil {
		sg.unwind(ctx, err)
		return nil, fail(err)
	}
	sg.record(sagaActionDeletePDF, pdf.Key, s.compensateDelete(pdf.Key))

	base := slug.Slugify(req.Title)
	unlock, err := s.locker.Lock(ctx, string(req.Category)+"/"+base)
	if err != nil {
		if errors.Is(err, slug.ErrLockNotAcquired) {
			err = fmt.Errorf("%w: %w", ErrConflict, err)
		}
		sg.unwind(ctx, err)
		return nil, fail(err)
	}
	defer unlock()

	allocated, err := slug.AllocateBase(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		return s.store.SlugExists(ctx, req.Category, candidate)
	})
	if err != nil {
		sg.unwind(ctx, err)
		return nil, fail(err)
	}

	summary := req.Summary
	if strings.TrimSpace(summary) == "" {
		summary = truncateRunes(req.Content, SummaryLength)
	}
	item = &ContentItem{
		Category: req.Category,
		Title:    strings.TrimSpace(req.Title),
		Slug:     allocated,
		Author:   req.Author,
		Genre:    req.Genre,
		Summary:  summary,
		Content:  req.Content,
		CoverKey: cover.Key,
		PDFKey:   pdf.Key,
	}
	if err := s.store.Create(ctx, item); err != nil {
		sg.unwind(ctx, err)
		return nil, fail(err)
	}

	s.logger.InfoContext(ctx, "content created",
		"category", item.Category, "id", item.ID, "slug", item.Slug)
	return item, nil
}

func (s *service) UpdateContent(ctx context.Context, req UpdateContentRequest) (item *ContentItem, err error) {
	defer func() { s.events.OperationFinished(ctx, OpUpdate, req.Category, err) }()
	fail := func(err error) error {
		return &ContentError{Category: req.Category, ID: req.ID, Op: OpUpdate, Err: err}
	}

	if err := validateUpdate(req); err != nil {
		return nil, fail(err)
	}
	existing, err := s.store.FindByID(ctx, req.Category, req.ID)
	if err != nil {
		return nil, fail(err)
	}

	patch := ContentPatch{
		Title:   trimmed(req.Title),
		Author:  req.Author,
		Genre:   req.Genre,
		Summary: req.Summary,
		Content: req.Content,
	}

	sg := newSaga(OpUpdate, s.logger, s.events)
	var replaced []string
	if req.Cover != nil {
		cover, err := s.gateway.Put(ctx, req.Cover, s.prefixes.Images)
		if err != nil {
			return nil, fail(err)
		}
		sg.record(sagaActionDeleteCover, cover.Key, s.compensateDelete(cover.Key))
		patch.CoverKey = &cover.Key
		if existing.CoverKey != "" {
			replaced = append(replaced, existing.CoverKey)
		}
	}
	if req.PDF != nil {
		pdf, err := s.gateway.Put(ctx, req.PDF, s.prefixes.PDFs)
		if err != nil {
			sg.unwind(ctx, err)
			return nil, fail(err)
		}
		sg.record(sagaActionDeletePDF, pdf.Key, s.compensateDelete(pdf.Key))
		patch.PDFKey = &pdf.Key
		if existing.PDFKey != "" {
			replaced = append(replaced, existing.PDFKey)
		}
	}

	if patch.IsEmpty() {
		return existing, nil
	}

	item, err = s.store.Update(ctx, req.Category, req.ID, patch)
	if err != nil {
		sg.unwind(ctx, err)
		return nil, fail(err)
	}

	for _, key := range replaced {
		s.deleteBestEffort(ctx, OpUpdate, key)
	}
	s.logger.InfoContext(ctx, "content updated",
		"category", item.Category, "id", item.ID, "replaced", len(replaced))
	return item, nil
}

func (s *service) DeleteContent(ctx context.Context, category Category, id int64) (err error) {
	defer func() { s.events.OperationFinished(ctx, OpDelete, category, err) }()
	fail := func(err error) error {
		return &ContentError{Category: category, ID: id, Op: OpDelete, Err: err}
	}

	if err := validateCategory(category); err != nil {
		return fail(err)
	}
	existing, err := s.store.FindByID(ctx, category, id)
	if err != nil {
		return fail(err)
	}
	if err := s.store.Delete(ctx, category, id); err != nil {
		return fail(err)
	}

	for _, key := range []string{existing.CoverKey, existing.PDFKey} {
		if key != "" {
			s.deleteBestEffort(ctx, OpDelete, key)
		}
	}
	s.logger.InfoContext(ctx, "content deleted", "category", category, "id", id, "slug", existing.Slug)
	return nil
}

func (s *service) GetContent(ctx context.Context, category Category, id int64) (*ContentItem, error) {
	if err := validateCategory(category); err != nil {
		return nil, &ContentError{Category: category, ID: id, Op: "get", Err: err}
	}
	item, err := s.store.FindByID(ctx, category, id)
	if err != nil {
		return nil, &ContentError{Category: category, ID: id, Op: "get", Err: err}
	}
	return item, nil
}

func (s *service) GetContentBySlug(ctx context.Context, category Category, slugValue string) (*ContentItem, error) {
	if err := validateCategory(category); err != nil {
		return nil, &ContentError{Category: category, Op: "get_by_slug", Err: err}
	}
	item, err := s.store.FindBySlug(ctx, category, slugValue)
	if err != nil {
		return nil, &ContentError{Category: category, Op: "get_by_slug", Err: err}
	}
	return item, nil
}

func (s *service) ListContent(ctx context.Context, req ListContentRequest) ([]*ContentItem, error) {
	if err := validateCategory(req.Category); err != nil {
		return nil, &ContentError{Category: req.Category, Op: "list", Err: err}
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, &ContentError{Category: req.Category, Op: "list", Err: Validationf("limit and offset must not be negative")}
	}
	items, err := s.store.List(ctx, req.Category, ListOptions{Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		return nil, &ContentError{Category: req.Category, Op: "list", Err: err}
	}
	return items, nil
}

// Views

func (s *service) ContentView(item *ContentItem) ContentItemView {
	return ContentItemView{
		ContentItem: *item,
		CoverURL:    s.urlFor(item.CoverKey),
		PDFURL:      s.urlFor(item.PDFKey),
	}
}

func (s *service) ProfileView(profile *Profile) ProfileView {
	view := ProfileView{ID: ProfileID, Name: s.profileName, Email: s.profileEmail}
	if profile == nil {
		return view
	}
	view.AvatarKey = profile.AvatarKey
	view.AvatarURL = s.urlFor(profile.AvatarKey)
	createdAt, updatedAt := profile.CreatedAt, profile.UpdatedAt
	view.CreatedAt = &createdAt
	view.UpdatedAt = &updatedAt
	return view
}

func (s *service) urlFor(key string) *string {
	if key == "" {
		return nil
	}
	u := s.gateway.PublicURL(key)
	return &u
}

// compensateDelete undoes an upload made earlier in the same request.
func (s *service) compensateDelete(key string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := s.gateway.Delete(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
}

// deleteBestEffort removes an object no record references any more. Failures
// leave an orphan behind and are logged only.
func (s *service) deleteBestEffort(ctx context.Context, op, key string) {
	ctx = context.WithoutCancel(ctx)
	err := s.gateway.Delete(ctx, key)
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "object deleted", "op", op, "key", key)
	case errors.Is(err, ErrNotFound):
		s.logger.WarnContext(ctx, "object already absent", "op", op, "key", key)
	default:
		s.logger.ErrorContext(ctx, "object orphaned", "op", op, "key", key, "err", err)
		s.events.ObjectOrphaned(ctx, op, key, err)
	}
}

// Validation

func validateCategory(c Category) error {
	if !c.IsValid() {
		return Validationf("invalid category %q", c)
	}
	return nil
}

func validateCreate(req CreateContentRequest) error {
	if err := validateCategory(req.Category); err != nil {
		return err
	}
	if strings.TrimSpace(req.Title) == "" {
		return Validationf("title is required")
	}
	if req.Cover == nil {
		return Validationf("cover image is required")
	}
	if req.PDF == nil {
		return Validationf("pdf file is required")
	}
	return nil
}

func validateUpdate(req UpdateContentRequest) error {
	if err := validateCategory(req.Category); err != nil {
		return err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return Validationf("title must not be blank")
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

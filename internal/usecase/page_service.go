// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"page-drm-service/internal/domain"
	"page-drm-service/internal/layout"
)

const tracerName = "page-drm-service/internal/usecase"

// PageRepository はデコード済みページのデータアクセスのインターフェース。
type PageRepository interface {
	ReplaceChapterPages(ctx context.Context, chapterID string, pages []*domain.Page) error
	FindByChapterID(ctx context.Context, chapterID string) ([]*domain.Page, error)
}

// PayloadDecryptor はラップ済み鍵でペイロードを復号するインターフェース。
type PayloadDecryptor interface {
	DecryptWithWrappedKey(wrappedKeyText, payloadText string) (string, error)
}

// LayoutResult は単体のDRMデータのデコード結果。
type LayoutResult struct {
	Blocks  []domain.RowBlock `json:"blocks"`
	Regions []domain.Region   `json:"regions"`
}

// PageService はチャプターページの復号に関するビジネスロジックを提供する。
type PageService struct {
	repo         PageRepository
	decryptor    PayloadDecryptor
	imageBaseURL string
	workers      int
	tracer       trace.Tracer
}

// NewPageService は新しいPageServiceを生成する。workersが1未満の場合は1とする。
func NewPageService(repo PageRepository, decryptor PayloadDecryptor, imageBaseURL string, workers int) *PageService {
	return &PageService{
		repo:         repo,
		decryptor:    decryptor,
		imageBaseURL: imageBaseURL,
		workers:      max(workers, 1),
		tracer:       otel.Tracer(tracerName),
	}
}

// ResolveImageURL は復号済みの画像パスを絶対URLにする。
// "/"で始まるパスはそのまま返し、それ以外はbaseに対して解決する。解決できない場合は元の文字列を返す。
func ResolveImageURL(base, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return baseURL.ResolveReference(ref).String()
}

// ParseManifest はチャプターマニフェストのJSONを解析する。
// ルートが "data" オブジェクトを持つ場合はその中身をマニフェストとして扱う。
func ParseManifest(raw []byte) (*domain.Manifest, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", domain.ErrInvalidManifest)
	}
	root := gjson.ParseBytes(raw)
	if data := root.Get("data"); data.IsObject() {
		root = data
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: root must be an object", domain.ErrInvalidManifest)
	}

	manifest := &domain.Manifest{}
	if key := root.Get("key"); key.Exists() {
		if key.Type != gjson.String {
			return nil, fmt.Errorf("%w: key must be a string", domain.ErrInvalidManifest)
		}
		manifest.WrappedKey = key.String()
	}

	pages := root.Get("pages")
	if !pages.IsArray() {
		return nil, fmt.Errorf("%w: pages must be an array", domain.ErrInvalidManifest)
	}

	seen := make(map[int]bool)
	for i, page := range pages.Array() {
		p, err := parseManifestPage(page, manifest.WrappedKey != "")
		if err != nil {
			return nil, fmt.Errorf("%w: pages[%d]: %v", domain.ErrInvalidManifest, i, err)
		}
		if seen[p.Order] {
			return nil, fmt.Errorf("%w: pages[%d]: duplicate order %d", domain.ErrInvalidManifest, i, p.Order)
		}
		seen[p.Order] = true
		manifest.Pages = append(manifest.Pages, p)
	}
	return manifest, nil
}

func parseManifestPage(page gjson.Result, hasKey bool) (domain.ManifestPage, error) {
	var p domain.ManifestPage
	if !page.IsObject() {
		return p, fmt.Errorf("page must be an object")
	}

	order := page.Get("order")
	if order.Type != gjson.Number || order.Num != math.Trunc(order.Num) || order.Num < 0 || order.Num > math.MaxInt32 {
		return p, fmt.Errorf("order must be a non-negative integer")
	}
	p.Order = int(order.Int())

	for field, dst := range map[string]*string{
		"path":      &p.Path,
		"image_url": &p.ImageURL,
		"drm_data":  &p.DrmData,
	} {
		v := page.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type != gjson.String {
			return p, fmt.Errorf("%s must be a string", field)
		}
		*dst = v.String()
	}

	switch {
	case p.Path == "" && p.ImageURL == "":
		return p, fmt.Errorf("either path or image_url is required")
	case p.Path != "" && !hasKey:
		return p, fmt.Errorf("encrypted path requires a key")
	}
	return p, nil
}

// DecryptURL はラップ済み鍵でペイロードを復号し、平文を返す。
func (s *PageService) DecryptURL(ctx context.Context, wrappedKey, payload string) (string, error) {
	_, span := s.tracer.Start(ctx, "PageService.DecryptURL")
	defer span.End()

	plain, err := s.decryptor.DecryptWithWrappedKey(wrappedKey, payload)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	return plain, nil
}

// DecodeLayout はDRMデータをデコードし、ブロックと転送矩形を返す。
func (s *PageService) DecodeLayout(ctx context.Context, drmData string) (*LayoutResult, error) {
	_, span := s.tracer.Start(ctx, "PageService.DecodeLayout")
	defer span.End()

	blocks, err := layout.DecodeRowLayout(drmData)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("layout.blocks", len(blocks)))
	return &LayoutResult{Blocks: blocks, Regions: layout.Regions(blocks)}, nil
}

// DecodeChapter はマニフェストの全ページを並列に復号し、ページ番号順に保存して返す。
// 1ページでも失敗した場合はチャプター全体を失敗とし、何も保存しない。
func (s *PageService) DecodeChapter(ctx context.Context, chapterID string, rawManifest []byte) ([]*domain.Page, error) {
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "PageService.DecodeChapter",
		trace.WithAttributes(attribute.String("chapter.id", chapterID)),
	)
	defer span.End()

	manifest, err := ParseManifest(rawManifest)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if len(manifest.Pages) == 0 {
		recordError(span, domain.ErrEmptyChapter)
		return nil, domain.ErrEmptyChapter
	}
	span.SetAttributes(attribute.Int("chapter.pages", len(manifest.Pages)))

	pages := make([]*domain.Page, len(manifest.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, mp := range manifest.Pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := s.decodePage(manifest.WrappedKey, mp)
			if err != nil {
				return fmt.Errorf("page %d: %w", mp.Order, err)
			}
			page.ChapterID = chapterID
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordError(span, err)
		return nil, err
	}

	slices.SortFunc(pages, func(a, b *domain.Page) int {
		return cmp.Compare(a.Index, b.Index)
	})

	if err := s.repo.ReplaceChapterPages(ctx, chapterID, pages); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("saving chapter pages: %w", err)
	}
	return pages, nil
}

// decodePage は1ページ分の画像URLとレイアウトを復号する。
func (s *PageService) decodePage(wrappedKey string, mp domain.ManifestPage) (*domain.Page, error) {
	page := &domain.Page{
		Index:  mp.Order,
		URL:    mp.ImageURL,
		Blocks: []domain.RowBlock{},
	}

	if mp.Path != "" {
		plain, err := s.decryptor.DecryptWithWrappedKey(wrappedKey, mp.Path)
		if err != nil {
			return nil, err
		}
		page.URL = ResolveImageURL(s.imageBaseURL, plain)
	}

	if mp.DrmData != "" {
		blocks, err := layout.DecodeRowLayout(mp.DrmData)
		if err != nil {
			return nil, err
		}
		page.Blocks = blocks
	}
	return page, nil
}

// GetChapterPages は保存済みのページを返す。存在しない場合はErrChapterNotFoundを返す。
func (s *PageService) GetChapterPages(ctx context.Context, chapterID string) ([]*domain.Page, error) {
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "PageService.GetChapterPages",
		trace.WithAttributes(attribute.String("chapter.id", chapterID)),
	)
	defer span.End()

	pages, err := s.repo.FindByChapterID(ctx, chapterID)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("finding chapter pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.ErrChapterNotFound
	}
	return pages, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

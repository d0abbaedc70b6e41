// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"page-drm-service/internal/domain"
)

// PageModel はdecoded_pagesテーブルのgormモデル。
// レイアウトはRowBlockの配列をJSON文字列として保存する。
type PageModel struct {
	ID        string            `gorm:"column:id;type:char(36);primaryKey"`
	ChapterID string            `gorm:"column:chapter_id;type:varchar(64);not null;uniqueIndex:uk_chapter_page"`
	PageIndex int               `gorm:"column:page_index;not null;uniqueIndex:uk_chapter_page"`
	URL       string            `gorm:"column:url;type:text;not null"`
	Layout    []domain.RowBlock `gorm:"column:layout;type:text;not null;serializer:json"`
	CreatedAt time.Time         `gorm:"column:created_at;type:datetime;not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (PageModel) TableName() string {
	return "decoded_pages"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *PageModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *PageModel) toDomain() *domain.Page {
	blocks := m.Layout
	if blocks == nil {
		blocks = []domain.RowBlock{}
	}
	return &domain.Page{
		ID:        m.ID,
		ChapterID: m.ChapterID,
		Index:     m.PageIndex,
		URL:       m.URL,
		Blocks:    blocks,
		CreatedAt: m.CreatedAt,
	}
}

// PageRepository はデコード済みページの永続化を提供する。
type PageRepository struct {
	db *gorm.DB
}

// NewPageRepository は新しいPageRepositoryを生成する。
func NewPageRepository(db *gorm.DB) *PageRepository {
	return &PageRepository{db: db}
}

// ReplaceChapterPages はチャプターの既存ページを削除し、渡されたページで置き換える。
// 削除と挿入は1トランザクションで行う。成功時はpagesのIDと作成日時を埋める。
func (r *PageRepository) ReplaceChapterPages(ctx context.Context, chapterID string, pages []*domain.Page) error {
	models := make([]*PageModel, len(pages))
	for i, p := range pages {
		models[i] = &PageModel{
			ID:        p.ID,
			ChapterID: chapterID,
			PageIndex: p.Index,
			URL:       p.URL,
			Layout:    p.Blocks,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&PageModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to replace chapter pages",
			"operation", "replace_chapter_pages",
			"chapter_id", chapterID,
			"page_count", len(pages),
			"error", err,
		)
		return err
	}

	for i, m := range models {
		pages[i].ID = m.ID
		pages[i].ChapterID = chapterID
		pages[i].CreatedAt = m.CreatedAt
	}
	return nil
}

// FindByChapterID はチャプターのページをページ番号順に取得する。
// 該当なしの場合は空のスライスを返す。
func (r *PageRepository) FindByChapterID(ctx context.Context, chapterID string) ([]*domain.Page, error) {
	var models []PageModel
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("page_index ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find pages by chapter_id",
			"operation", "find_by_chapter_id",
			"chapter_id", chapterID,
			"error", err,
		)
		return nil, err
	}

	pages := make([]*domain.Page, len(models))
	for i := range models {
		pages[i] = models[i].toDomain()
	}
	return pages, nil
}

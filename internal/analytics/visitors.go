package analytics

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

type VisitorListItem struct {
	visitors.Visitor
	Alias string `json:"alias"`
}

type VisitorPage struct {
	Visitors []VisitorListItem `json:"visitors"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Total    int64             `json:"total"`
}

type VisitorDetail struct {
	visitors.Visitor
	Alias    string             `json:"alias"`
	Sessions []sessions.Session `json:"sessions"`
}

// ListVisitors pages through all visitors, most recently seen first.
// page is clamped into [1, MaxPage]; pageSize into [1, MaxPageSize].
func ListVisitors(ctx context.Context, db *gorm.DB, page, pageSize int) (*VisitorPage, error) {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	db = db.WithContext(ctx)

	var total int64
	if err := db.Model(&visitors.Visitor{}).Count(&total).Error; err != nil {
		return nil, unavailable("counting visitors", err)
	}

	var rows []visitors.Visitor
	err := db.Order("last_seen_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("listing visitors", err)
	}

	items := make([]VisitorListItem, len(rows))
	for i, v := range rows {
		items[i] = VisitorListItem{Visitor: v, Alias: visitors.Alias(v.Token)}
	}

	return &VisitorPage{Visitors: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// GetVisitorDetail returns a visitor with its most recent sessions (newest
// first), each carrying its page views oldest first.
func GetVisitorDetail(ctx context.Context, db *gorm.DB, token string) (*VisitorDetail, error) {
	db = db.WithContext(ctx)

	v, err := visitors.FindByToken(db, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVisitorNotFound
	}
	if err != nil {
		return nil, unavailable("loading visitor", err)
	}

	var recent []sessions.Session
	err = db.Where("visitor_id = ?", v.ID).
		Order("started_at DESC, id DESC").
		Limit(RecentSessionsLimit).
		Preload("PageViews", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("entered_at ASC, id ASC")
		}).
		Find(&recent).Error
	if err != nil {
		return nil, unavailable("loading visitor sessions", err)
	}

	return &VisitorDetail{
		Visitor:  *v,
		Alias:    visitors.Alias(v.Token),
		Sessions: recent,
	}, nil
}

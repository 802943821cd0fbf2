package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultConsentItems are seeded into an empty consent_items table.
var DefaultConsentItems = []ConsentItem{
	{Code: ConsentTerms, Title: "서비스 이용약관 동의", Required: true, Active: true},
	{Code: ConsentPrivacy, Title: "개인정보 수집 및 이용 동의", Required: true, Active: true},
	{Code: ConsentLocation, Title: "위치기반 서비스 이용약관 동의", Required: true, Active: true},
	{Code: ConsentMarketing, Title: "마케팅 정보 수신 동의", Required: false, Active: true},
}

type consentsRepository struct {
	db *bun.DB
}

// NewConsentsRepository creates a bun backed ConsentStore.
func NewConsentsRepository(db *bun.DB) ConsentStore {
	return &consentsRepository{db: db}
}

func (r *consentsRepository) FindActiveByCode(ctx context.Context, code ConsentCode) (*ConsentItem, error) {
	item := &ConsentItem{}
	err := r.db.NewSelect().
		Model(item).
		Where("code = ?", code).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, WithSource(ErrConsentItemNotFound, err, map[string]any{"consent": code})
		}
		return nil, Internal(err, "failed to load consent item")
	}
	return item, nil
}

func (r *consentsRepository) SaveTx(ctx context.Context, tx bun.IDB, consents []*UserConsent) error {
	if len(consents) == 0 {
		return nil
	}
	for _, c := range consents {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.AgreedAt = c.AgreedAt.UTC()
	}

	if _, err := tx.NewInsert().Model(&consents).Exec(ctx); err != nil {
		return Internal(err, "failed to save user consents")
	}
	return nil
}

func (r *consentsRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*UserConsent, error) {
	var consents []*UserConsent
	err := r.db.NewSelect().
		Model(&consents).
		Where("user_id = ?", userID).
		OrderExpr("consent_item_id ASC").
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return nil, Internal(err, "failed to load user consents")
	}
	return consents, nil
}

// SeedConsentItems inserts items whose code is not yet present.
func SeedConsentItems(ctx context.Context, db bun.IDB, items []ConsentItem) error {
	for _, item := range items {
		exists, err := db.NewSelect().
			Model((*ConsentItem)(nil)).
			Where("code = ?", item.Code).
			Exists(ctx)
		if err != nil {
			return Internal(err, "failed to seed consent items")
		}
		if exists {
			continue
		}
		it := item
		if _, err := db.NewInsert().Model(&it).Exec(ctx); err != nil {
			return Internal(err, "failed to seed consent items")
		}
	}
	return nil
}

type forbiddenWordsRepository struct {
	db *bun.DB
}

// NewForbiddenWordsRepository creates a bun backed ForbiddenWordStore.
func NewForbiddenWordsRepository(db *bun.DB) ForbiddenWordStore {
	return &forbiddenWordsRepository{db: db}
}

func (r *forbiddenWordsRepository) ListWords(ctx context.Context) ([]string, error) {
	var words []string
	err := r.db.NewSelect().
		Model((*ForbiddenWord)(nil)).
		Column("word").
		Scan(ctx, &words)
	if err != nil && !isNoRows(err) {
		return nil, Internal(err, "failed to load forbidden words")
	}
	return words, nil
}

// AddForbiddenWords inserts words, ignoring ones already present.
func AddForbiddenWords(ctx context.Context, db bun.IDB, words ...string) error {
	now := time.Now().UTC()
	for _, w := range words {
		record := &ForbiddenWord{Word: w, CreatedAt: now}
		_, err := db.NewInsert().
			Model(record).
			On("CONFLICT (word) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return Internal(err, "failed to add forbidden word")
		}
	}
	return nil
}

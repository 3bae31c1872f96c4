package receipt

import (
	"context"
	"time"

	"github.com/bdzhonsoniuk/backend-receipts/internal/obs"
)

// Store abstracts receipt persistence for the service.
type Store interface {
	Create(ctx context.Context, rc Receipt) (Receipt, error)
	GetByID(ctx context.Context, id, userID string) (Receipt, error)
	GetByPublicID(ctx context.Context, publicID string) (Receipt, error)
	List(ctx context.Context, userID string, f Filter, limit, offset int) ([]Receipt, int64, error)
}

// Service orchestrates receipt creation, lookup, and text rendering.
type Service struct {
	Store    Store
	Cache    *RenderCache
	Merchant string
	Footer   string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateReceipt computes totals for the purchase and persists the result.
func (s *Service) CreateReceipt(ctx context.Context, userID string, items []LineItem, payment Payment) (Receipt, error) {
	rc, err := Compute(items, payment, s.now())
	if err != nil {
		return Receipt{}, err
	}
	rc.UserID = userID
	stored, err := s.Store.Create(ctx, rc)
	if err != nil {
		return Receipt{}, err
	}
	if obs.ReceiptsCreatedTotal != nil {
		obs.ReceiptsCreatedTotal.WithLabelValues(string(stored.PaymentKind)).Inc()
	}
	return stored, nil
}

// GetReceipt returns the receipt with the given id if it belongs to the user.
func (s *Service) GetReceipt(ctx context.Context, userID, id string) (Receipt, error) {
	return s.Store.GetByID(ctx, id, userID)
}

// ListReceipts returns the user's receipts matching the filter plus the total
// match count for pagination.
func (s *Service) ListReceipts(ctx context.Context, userID string, f Filter, limit, offset int) ([]Receipt, int64, error) {
	return s.Store.List(ctx, userID, f, limit, offset)
}

// RenderByPublicID loads a receipt by its public identifier and renders it as
// fixed-width text. Rendered output is cached per (receipt, width).
func (s *Service) RenderByPublicID(ctx context.Context, publicID string, lineWidth int) (string, error) {
	// reject before touching the cache so bad widths never count as misses
	if err := ValidateLineWidth(lineWidth); err != nil {
		return "", err
	}

	if text, ok := s.Cache.Get(ctx, publicID, lineWidth); ok {
		if obs.ReceiptRenderCacheTotal != nil {
			obs.ReceiptRenderCacheTotal.WithLabelValues("hit").Inc()
		}
		return text, nil
	}
	if obs.ReceiptRenderCacheTotal != nil {
		obs.ReceiptRenderCacheTotal.WithLabelValues("miss").Inc()
	}

	rc, err := s.Store.GetByPublicID(ctx, publicID)
	if err != nil {
		if obs.ReceiptRendersTotal != nil {
			obs.ReceiptRendersTotal.WithLabelValues("not_found").Inc()
		}
		return "", err
	}

	text, err := Render(rc, lineWidth, RenderOptions{MerchantName: s.Merchant, Footer: s.Footer})
	if err != nil {
		if obs.ReceiptRendersTotal != nil {
			obs.ReceiptRendersTotal.WithLabelValues("error").Inc()
		}
		return "", err
	}
	if obs.ReceiptRendersTotal != nil {
		obs.ReceiptRendersTotal.WithLabelValues("ok").Inc()
	}
	s.Cache.Set(ctx, publicID, lineWidth, text)
	return text, nil
}

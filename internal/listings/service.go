// Package listings serves seller listing data using the stored marketplace token
package listings

import (
	"context"
	"encoding/json"
	"strings"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/models"
)

// TokenProvider hands out a valid access token for a user
type TokenProvider interface {
	GetValidToken(ctx context.Context, userID string) (*models.TokenRecord, error)
}

// API is the subset of the marketplace client the service needs
type API interface {
	SearchItemIDs(ctx context.Context, token, userID string) ([]string, error)
	GetItems(ctx context.Context, token string, ids []string) ([]models.Item, error)
	GetSalePrice(ctx context.Context, token, itemID string) (*models.SalePrice, bool, error)
	ListPromotions(ctx context.Context, token, userID string) (json.RawMessage, error)
	PromotionItems(ctx context.Context, token, promotionID, promotionType, status string) (json.RawMessage, error)
}

// Service combines token lookup with marketplace calls
type Service struct {
	tokens TokenProvider
	api    API
	logger logging.Logger
}

// NewService creates a listing service
func NewService(tokens TokenProvider, api API, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{tokens: tokens, api: api, logger: logger}
}

// SellerItems returns the details of every item userID has listed
func (s *Service) SellerItems(ctx context.Context, userID string) (*models.SellerItemsResponse, error) {
	token, err := s.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids, err := s.api.SearchItemIDs(ctx, token, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.api.GetItems(ctx, token, ids)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Debug("Fetched seller items",
		logging.Int("listed", len(ids)),
		logging.Int("returned", len(items)),
	)

	return &models.SellerItemsResponse{
		UserID: userID,
		Total:  len(items),
		Items:  items,
	}, nil
}

// ItemPrice returns the sale price of itemID. Items without an active
// promotion come back with Promotion false and no sale price.
func (s *Service) ItemPrice(ctx context.Context, userID, itemID string) (*models.ItemPriceResponse, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, errors.ValidationError("item id is required")
	}

	token, err := s.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	price, found, err := s.api.GetSalePrice(ctx, token, itemID)
	if err != nil {
		return nil, err
	}

	response := &models.ItemPriceResponse{ItemID: itemID}
	if found {
		response.SalePrice = price
		response.Promotion = price.HasPromotion()
	}
	return response, nil
}

// Promotions returns the seller's promotions unchanged
func (s *Service) Promotions(ctx context.Context, userID string) (json.RawMessage, error) {
	token, err := s.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.api.ListPromotions(ctx, token, userID)
}

// PromotionItems returns the items of one of the seller's promotions unchanged
func (s *Service) PromotionItems(ctx context.Context, userID, promotionID, promotionType, status string) (json.RawMessage, error) {
	if strings.TrimSpace(promotionID) == "" {
		return nil, errors.ValidationError("promotion id is required")
	}

	token, err := s.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.api.PromotionItems(ctx, token, promotionID, promotionType, status)
}

func (s *Service) accessToken(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.ValidationError("user_id is required")
	}

	token, err := s.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

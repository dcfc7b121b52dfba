package models

import "encoding/json"

// ItemAttributes is the field selection requested from the multi-get endpoint
const ItemAttributes = "id,title,price,original_price,currency_id,status,permalink,catalog_listing"

// Item is a seller listing as returned by the marketplace
type Item struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	OriginalPrice  *float64 `json:"original_price"`
	CurrencyID     string   `json:"currency_id,omitempty"`
	Status         string   `json:"status"`
	Permalink      string   `json:"permalink"`
	CatalogListing bool     `json:"catalog_listing"`
}

// ItemResult is one entry of a multi-get response. Code mirrors the HTTP
// status the marketplace would have given the single item request.
type ItemResult struct {
	Code int  `json:"code"`
	Body Item `json:"body"`
}

// SearchPaging is the paging block of the seller search endpoint
type SearchPaging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SearchResult is a page of item ids from the seller search endpoint
type SearchResult struct {
	SellerID string       `json:"seller_id"`
	Results  []string     `json:"results"`
	Paging   SearchPaging `json:"paging"`
	// ScrollID continues a scan mode walk
	ScrollID string       `json:"scroll_id,omitempty"`
}

// SalePrice is the price an item currently sells for. RegularAmount is set
// when a promotion lowers Amount.
type SalePrice struct {
	PriceID       string          `json:"price_id"`
	Amount        float64         `json:"amount"`
	RegularAmount *float64        `json:"regular_amount"`
	CurrencyID    string          `json:"currency_id"`
	ReferenceDate string          `json:"reference_date,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// HasPromotion reports whether the sale price is below the regular price
func (p *SalePrice) HasPromotion() bool {
	return p != nil && p.RegularAmount != nil && *p.RegularAmount > p.Amount
}

// SellerItemsResponse is the payload of GET /items
type SellerItemsResponse struct {
	UserID string `json:"user_id"`
	Total  int    `json:"total"`
	Items  []Item `json:"items"`
}

// ItemPriceResponse is the payload of GET /items/{itemId}/price
type ItemPriceResponse struct {
	ItemID    string     `json:"item_id"`
	Promotion bool       `json:"promotion"`
	SalePrice *SalePrice `json:"sale_price,omitempty"`
}

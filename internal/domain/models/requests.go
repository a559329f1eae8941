package models

// Requests for trading HTTP endpoints. Defined in domain for consistency and reuse.

type HistoryRequest struct {
	FeedID string `param:"feed_id" query:"feed_id" json:"feed_id" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type PricesRequest struct {
	IDs []string `query:"ids" json:"ids" validate:"required,min=1,max=20,dive,required"`
}

type TradesRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=50"`
}

package accounthandler

import (
	"auctionengine/internal/domain"

	"github.com/shopspring/decimal"
)

type BalanceView struct {
	domain.Balance
	// Real balance plus virtual balance converted at the multiplier.
	SpendingPower decimal.Decimal `json:"spending_power" swaggertype:"string"`
} // @name Balance

type ConvertBody struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"50"`
} // @name ConvertRequest

type AdjustBody struct {
	Field         string          `json:"field"  binding:"required,oneof=real virtual usd REAL VIRTUAL USD" example:"real"`
	Delta         decimal.Decimal `json:"delta"  swaggertype:"string" example:"-25.50"`
	Reason        string          `json:"reason" binding:"required,max=500" example:"chargeback"`
	AllowNegative bool            `json:"allow_negative"`
} // @name AdjustBalanceRequest

type ReverseBody struct {
	Reason string `json:"reason" binding:"max=500"`
} // @name ReverseRequest

type PageQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=0,lte=200"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
}

package adminhandler

import (
	"auctionengine/internal/domain"
	"auctionengine/internal/services/settlement"
)

const (
	ActionSettle        = "settle"
	ActionCheckNegative = "check_negative"
)

type SettlementBody struct {
	// Accepted for check_negative but not used; the scan covers every user.
	ProductID string `json:"productId" binding:"omitempty,uuid"`
	Action    string `json:"action"    binding:"required,oneof=settle check_negative" example:"settle"`
	Force     bool   `json:"force"`
} // @name SettlementRequest

type SettlementResponse struct {
	Action           string             `json:"action"`
	Settlement       *domain.Settlement `json:"settlement,omitempty"`
	NegativeBalances []domain.Balance   `json:"negative_balances,omitempty"`
	Count            int                `json:"count,omitempty"`
} // @name SettlementResponse

type SweepResponse struct {
	settlement.SweepResult
	Activated int    `json:"activated"`
	Error     string `json:"error,omitempty"`
} // @name SweepResponse

type CancelBody struct {
	Reason string `json:"reason" binding:"required,max=500" example:"item withdrawn"`
} // @name CancelAuctionRequest

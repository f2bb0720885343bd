// Package models holds the JSON request and response shapes of the HTTP API.
package models

import (
	"encoding/json"
	"time"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/lifecycle"
	"github.com/dastarhan/backend/internal/services/money"
)

type AuthorizationRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	Fulfillment     string             `json:"fulfillment"`
	DeliveryAddress string             `json:"delivery_address,omitempty"`
}

type OrderItemRequest struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
	// Price is accepted for backward compatibility with older clients but
	// never trusted; the catalog price always wins.
	Price          float64         `json:"price,omitempty"`
	Customizations json.RawMessage `json:"customizations,omitempty"`
}

type CreateOrderResponse struct {
	Order   OrderResponse `json:"order"`
	Message string        `json:"message"`
}

type OrderResponse struct {
	ID               int64   `json:"id"`
	Status           string  `json:"status"`
	Fulfillment      string  `json:"fulfillment"`
	Total            float64 `json:"total"`
	DeliveryAddress  string  `json:"delivery_address,omitempty"`
	OrderCode        string  `json:"order_code,omitempty"`
	EstimatedReadyAt string  `json:"estimated_ready_at,omitempty"`
	ReadyAt          string  `json:"ready_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func NewOrderResponse(order entities.Order) OrderResponse {
	response := OrderResponse{
		ID:          order.ID,
		Status:      string(order.Status),
		Fulfillment: string(order.Fulfillment),
		Total:       money.FromMinorUnits(order.Total),
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
	}

	if order.DeliveryAddress.Valid {
		response.DeliveryAddress = order.DeliveryAddress.String
	}
	if order.OrderCode.Valid {
		response.OrderCode = order.OrderCode.String
	}
	if order.EstimatedReadyAt.Valid {
		response.EstimatedReadyAt = order.EstimatedReadyAt.Time.Format(time.RFC3339)
	}
	if order.ReadyAt.Valid {
		response.ReadyAt = order.ReadyAt.Time.Format(time.RFC3339)
	}

	return response
}

type GetOrdersResponse []OrderResponse

type AcceptOrderRequest struct {
	EstimatedMinutes int `json:"estimated_minutes"`
}

type AttachCheckoutRequest struct {
	Reference string `json:"reference"`
}

type RepeatItemResponse struct {
	MenuItemID int64   `json:"menu_item_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

type RepeatOrderResponse struct {
	Items       []RepeatItemResponse `json:"items"`
	Unavailable []string             `json:"unavailable,omitempty"`
}

func NewRepeatOrderResponse(result lifecycle.RepeatResult) RepeatOrderResponse {
	response := RepeatOrderResponse{
		Items:       make([]RepeatItemResponse, 0, len(result.Items)),
		Unavailable: result.Unavailable,
	}

	for _, item := range result.Items {
		response.Items = append(response.Items, RepeatItemResponse{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Price:      money.FromMinorUnits(item.UnitPrice),
		})
	}

	return response
}

type BalanceResponse struct {
	CardNumber  string  `json:"card_number,omitempty"`
	Balance     int64   `json:"balance"`
	PeriodSpent float64 `json:"period_spent"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

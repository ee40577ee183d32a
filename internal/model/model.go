// Package model содержит доменные сущности сервиса выкупа кодов.
package model

import "time"

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusQueued     OrderStatus = "queued"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusSuccess    OrderStatus = "success"
	OrderStatusFailed     OrderStatus = "failed"
)

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusFailed
}

// Order описывает заказ на выкуп одного кода.
// Суммы хранятся в центах, конвертация в доллары выполняется на границе API.
type Order struct {
	ID          int64       `json:"id"`
	PlayerID    string      `json:"player_id"`
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	AmountCents int64       `json:"amount_cents"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Log         []string    `json:"log"`
	WorkerID    string      `json:"worker_id,omitempty"`
	RedeemCode  string      `json:"redeem_code,omitempty"`
	Analysis    string      `json:"analysis,omitempty"`
}

// WorkerStatus описывает административный статус воркера.
type WorkerStatus string

const (
	WorkerStatusActive   WorkerStatus = "active"
	WorkerStatusDisabled WorkerStatus = "disabled"
)

// WorkerRuntime описывает рабочий статус воркера, управляемый планировщиком.
type WorkerRuntime string

const (
	WorkerRuntimeOnline  WorkerRuntime = "online"
	WorkerRuntimeBusy    WorkerRuntime = "busy"
	WorkerRuntimeOffline WorkerRuntime = "offline"
)

// Worker описывает бот-аккаунт, выполняющий заказы.
type Worker struct {
	ID       string        `json:"id"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Status   WorkerStatus  `json:"status"`
	Runtime  WorkerRuntime `json:"runtime_status,omitempty"`
}

// Eligible сообщает, может ли воркер взять заказ: административный статус active
// и рабочий статус не busy. Пустой рабочий статус трактуется как online.
func (w Worker) Eligible() bool {
	return w.Status == WorkerStatusActive && w.Runtime != WorkerRuntimeBusy
}

// Product описывает товар с пулом кодов активации. Коды выдаются в порядке добавления.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PriceCents  int64    `json:"price_cents"`
	ImageURL    string   `json:"image_url,omitempty"`
	RedeemCodes []string `json:"redeem_codes"`
}

// InStock сообщает, доступен ли товар к покупке.
func (p Product) InStock() bool {
	return len(p.RedeemCodes) > 0
}

// UserProfile описывает единственный клиентский профиль с балансом.
type UserProfile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BalanceCents int64  `json:"balance_cents"`
}

// FundingStatus описывает статус заявки на пополнение баланса.
type FundingStatus string

const (
	FundingStatusPending  FundingStatus = "pending"
	FundingStatusApproved FundingStatus = "approved"
	FundingStatusRejected FundingStatus = "rejected"
)

// Terminal сообщает, рассмотрена ли заявка.
func (s FundingStatus) Terminal() bool {
	return s == FundingStatusApproved || s == FundingStatusRejected
}

// FundingRequest описывает заявку пользователя на пополнение баланса.
type FundingRequest struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	UserName    string        `json:"user_name"`
	AmountCents int64         `json:"amount_cents"`
	Method      string        `json:"method"`
	Reference   string        `json:"reference"`
	Status      FundingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

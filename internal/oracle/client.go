// Package oracle предоставляет клиент внешнего сервиса классификации.
//
// Сервис выполняет три операции: проверку формата идентификатора игрока,
// анализ сырого результата выкупа и разбор пакетного импорта товаров.
// Каждая операция имеет документированный локальный запасной вариант,
// поэтому методы клиента не возвращают транспортных ошибок наружу.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/redeem-system/internal/validation"
)

// FallbackNotification — текст уведомления при недоступности анализа.
const FallbackNotification = "Could not verify transaction status."

// Client инкапсулирует HTTP-взаимодействие с сервисом классификации.
// Нулевой или ненастроенный клиент сразу использует запасные правила.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// ValidationResult описывает ответ проверки идентификатора игрока.
type ValidationResult struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message"`
}

// AnalysisResult описывает вердикт по сырому результату выкупа.
type AnalysisResult struct {
	Success          bool   `json:"success"`
	UserNotification string `json:"user_notification"`
}

// ImportedProduct описывает одну позицию разобранного пакетного импорта.
// Цена приходит в долларах.
type ImportedProduct struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	RedeemCode string  `json:"redeem_code"`
	ImageURL   string  `json:"image_url,omitempty"`
}

// NewClient создаёт клиент сервиса классификации по указанному адресу.
func NewClient(baseURL string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = time.Second
	httpClient.HTTPClient.Timeout = 5 * time.Second
	httpClient.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("oracle client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

type validateRequest struct {
	PlayerID string `json:"player_id"`
}

// ValidateIdentifier проверяет формат идентификатора игрока. При недоступности
// сервиса действует локальное правило: только цифры, длина от 5 до 15.
func (c *Client) ValidateIdentifier(ctx context.Context, playerID string) ValidationResult {
	var result ValidationResult
	if err := c.post(ctx, "/api/validate", validateRequest{PlayerID: playerID}, &result); err != nil {
		if validation.IsValidPlayerID(playerID) {
			return ValidationResult{IsValid: true, Message: "Valid Format"}
		}
		return ValidationResult{IsValid: false, Message: "Invalid Format"}
	}
	return result
}

type analyzeRequest struct {
	RawText     string `json:"raw_text"`
	PlayerID    string `json:"player_id"`
	ProductName string `json:"product_name"`
}

// AnalyzeOutcome классифицирует сырой результат выкупа. Недоступность сервиса
// трактуется как неуспех с типовым уведомлением и не считается ошибкой конвейера.
func (c *Client) AnalyzeOutcome(ctx context.Context, rawText, playerID, productName string) AnalysisResult {
	var result AnalysisResult
	err := c.post(ctx, "/api/analyze", analyzeRequest{
		RawText:     rawText,
		PlayerID:    playerID,
		ProductName: productName,
	}, &result)
	if err != nil {
		return AnalysisResult{Success: false, UserNotification: FallbackNotification}
	}
	return result
}

type importRequest struct {
	RawText string `json:"raw_text"`
}

// ParseBulkImport разбирает сырой текст импорта в список товаров.
// При недоступности сервиса возвращается пустой список.
func (c *Client) ParseBulkImport(ctx context.Context, rawText string) []ImportedProduct {
	var result []ImportedProduct
	if err := c.post(ctx, "/api/import", importRequest{RawText: rawText}, &result); err != nil {
		return nil
	}
	return result
}

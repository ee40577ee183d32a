// Package bot симулирует внешний шаг выкупа кода бот-аккаунтом.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// SentinelPlayerID — зарезервированный идентификатор игрока, моделирующий
// раннее отклонение внешней стороной до фазы выкупа.
const SentinelPlayerID = "00000"

// Executor выполняет последовательность действий выкупа и возвращает сырой
// текст результата. Каждый шаг отражается в журнале и является точкой
// приостановки; паузу между шагами задаёт StepDelay.
type Executor struct {
	// StepDelay — пауза между шагами симуляции. Ноль отключает паузы (тесты).
	StepDelay time.Duration
}

// NewExecutor создаёт исполнитель с паузой шага по умолчанию.
func NewExecutor() *Executor {
	return &Executor{StepDelay: 500 * time.Millisecond}
}

func (e *Executor) pause(ctx context.Context) {
	if e.StepDelay <= 0 {
		return
	}

	timer := time.NewTimer(e.StepDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run проводит попытку выкупа кода от имени воркера и возвращает сырой текст
// результата. Зарезервированный идентификатор игрока коротко замыкает
// выполнение в синтетическую ошибку; коды с известными ключевыми словами дают
// синтетические тексты отказов, остальные — текст успеха.
func (e *Executor) Run(ctx context.Context, worker model.Worker, playerID, code string, log func(string)) string {
	log(fmt.Sprintf("> [bot:%s] Initializing sequence...", worker.Email))
	log("> [nav] Opening redemption portal")
	e.pause(ctx)

	log("> [action] Logging in")
	log(fmt.Sprintf("> [action] Typed email: %s", worker.Email))
	log("> [action] Typed password: ************")
	e.pause(ctx)
	log("> [bot] Status: LOGGED_IN (active session)")

	if playerID == SentinelPlayerID {
		return "Error: Invalid Player ID provided."
	}

	log(fmt.Sprintf("> [action] Typed player id: %s", playerID))
	e.pause(ctx)

	log(fmt.Sprintf("> [action] Typed code: %s", code))
	log("> [portal] Processing request...")
	e.pause(ctx)

	switch {
	case strings.Contains(code, "INVALID") || strings.Contains(code, "EXP"):
		log("> [portal] Returned error dialog")
		return "Error: the code format is invalid, please try again."
	case strings.Contains(code, "REGION"):
		log("> [portal] Returned error dialog")
		return "This redemption code is not applicable for your region."
	case strings.Contains(code, "USED"):
		log("> [portal] Returned error dialog")
		return "This code has already been redeemed."
	}

	return fmt.Sprintf(
		"Transaction Result:\nStatus: SUCCESS\nMessage: The items have been sent to account %s.\nRef: %d",
		playerID, time.Now().UnixMilli(),
	)
}

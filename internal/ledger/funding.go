package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// ErrFundingInvalid возвращается при создании заявки с неположительной суммой.
var ErrFundingInvalid = errors.New("funding request requires a positive amount")

// CreateFundingRequest регистрирует заявку на пополнение баланса текущего профиля.
func (l *Ledger) CreateFundingRequest(ctx context.Context, amountCents int64, method, reference string) (*model.FundingRequest, error) {
	if amountCents <= 0 {
		return nil, ErrFundingInvalid
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	profile, err := l.store.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	requests, err := l.store.GetFundingRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("get funding requests: %w", err)
	}

	request := model.FundingRequest{
		ID:          newStringID(),
		UserID:      profile.ID,
		UserName:    profile.Name,
		AmountCents: amountCents,
		Method:      method,
		Reference:   reference,
		Status:      model.FundingStatusPending,
		CreatedAt:   time.Now(),
	}
	requests = append(requests, request)

	if err := l.store.SaveFundingRequests(ctx, requests); err != nil {
		return nil, fmt.Errorf("save funding requests: %w", err)
	}

	l.publish(Event{Collection: CollectionFunding})
	return &request, nil
}

// ResolveFundingRequest рассматривает заявку: approve зачисляет её сумму на
// баланс заявителя ровно один раз, reject только меняет статус. Статус
// рассмотренной заявки конечен, повторное рассмотрение отклоняется.
func (l *Ledger) ResolveFundingRequest(ctx context.Context, id string, approve bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	requests, err := l.store.GetFundingRequests(ctx)
	if err != nil {
		return fmt.Errorf("get funding requests: %w", err)
	}

	var request *model.FundingRequest
	for i := range requests {
		if requests[i].ID == id {
			request = &requests[i]
			break
		}
	}
	if request == nil {
		return ErrFundingNotFound
	}
	if request.Status.Terminal() {
		return ErrFundingResolved
	}

	if approve {
		request.Status = model.FundingStatusApproved

		profile, err := l.store.GetProfile(ctx)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		if profile.ID == request.UserID {
			profile.BalanceCents += request.AmountCents
			if err := l.store.SaveProfile(ctx, profile); err != nil {
				return fmt.Errorf("save profile: %w", err)
			}
			l.publish(Event{Collection: CollectionProfile})
		}
	} else {
		request.Status = model.FundingStatusRejected
	}

	if err := l.store.SaveFundingRequests(ctx, requests); err != nil {
		return fmt.Errorf("save funding requests: %w", err)
	}

	l.publish(Event{Collection: CollectionFunding})
	return nil
}

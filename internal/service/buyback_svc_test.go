package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grading_sync_v1/internal/model"
)

type buybackFixture struct {
	*domainFixture
	svc    *BuybackService
	alice  *model.Customer
	graded []*model.Card
}

// newBuybackFixture 客户名下两张已评级卡片
func newBuybackFixture(t *testing.T) *buybackFixture {
	f := newDomainFixture(t)
	customer := f.customer(t, "Alice")
	sub := f.submission(t, customer.ID)
	return &buybackFixture{
		domainFixture: f,
		svc:           NewBuybackService(f.offers, f.cards, f.customers, f.submissions, f.clock),
		alice:         customer,
		graded: []*model.Card{
			f.card(t, sub.ID, &customer.ID, "10"),
			f.card(t, sub.ID, nil, "9"),
		},
	}
}

func (f *buybackFixture) offerInput() CreateOfferInput {
	return CreateOfferInput{
		CompanyID:  f.company.ID,
		CustomerID: f.alice.ID,
		Items: []OfferItemInput{
			{CardID: f.graded[0].ID, OfferAmount: decimal.NewFromInt(50), GradingFee: decimal.NewFromInt(5)},
			{CardID: f.graded[1].ID, OfferAmount: decimal.NewFromInt(30), GradingFee: decimal.NewFromInt(5)},
		},
		BulkDiscountPercent: decimal.NewFromInt(10),
		DeadlineHours:       48,
	}
}

func (f *buybackFixture) createOffer(t *testing.T) *model.BuybackOffer {
	offer, err := f.svc.CreateOffer(context.Background(), f.offerInput())
	require.NoError(t, err)
	return offer
}

func (f *buybackFixture) customerParty() ActingParty {
	return ActingParty{Role: PartyCustomer, CustomerID: f.alice.ID}
}

func TestBuybackService_CreateOffer_Payout(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()

	offer := f.createOffer(t)
	assert.Equal(t, model.OfferStatusPending, offer.Status)
	assert.True(t, offer.Subtotal.Equal(decimal.NewFromInt(80)))
	assert.True(t, offer.BulkDiscountAmount.Equal(decimal.NewFromInt(8)))
	assert.True(t, offer.GradingFeeTotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, offer.FinalPayout.Equal(decimal.NewFromInt(62)), "final = %s", offer.FinalPayout)
	assert.Equal(t, testEpoch.Add(48*time.Hour), offer.ResponseDeadline)
	assert.Equal(t, f.company.ID, offer.CompanyID)

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.True(t, stored.FinalPayout.Equal(decimal.NewFromInt(62)))
	assert.Len(t, stored.Items, 2)

	resp := ToOfferResp(stored)
	assert.Equal(t, "pending", resp.Status)
	assert.Len(t, resp.Items, 2)
}

func TestBuybackService_CreateOffer_Validation(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *CreateOfferInput)
	}{
		{"没有卡片", func(in *CreateOfferInput) { in.Items = nil }},
		{"截止时间为 0", func(in *CreateOfferInput) { in.DeadlineHours = 0 }},
		{"折扣为负", func(in *CreateOfferInput) { in.BulkDiscountPercent = decimal.NewFromInt(-1) }},
		{"折扣 100%", func(in *CreateOfferInput) { in.BulkDiscountPercent = decimal.NewFromInt(100) }},
		{"卡片重复", func(in *CreateOfferInput) { in.Items[1].CardID = in.Items[0].CardID }},
		{"金额为负", func(in *CreateOfferInput) { in.Items[0].OfferAmount = decimal.NewFromInt(-5) }},
		{"最终金额为负", func(in *CreateOfferInput) { in.Items[0].GradingFee = decimal.NewFromInt(500) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.offerInput()
			tt.mutate(&in)
			_, err := f.svc.CreateOffer(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	in := f.offerInput()
	in.CustomerID = 99999
	_, err := f.svc.CreateOffer(ctx, in)
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	// 未指定卡店或卡店不符都视为找不到客户
	for _, companyID := range []int64{0, f.company.ID + 1} {
		in := f.offerInput()
		in.CompanyID = companyID
		_, err := f.svc.CreateOffer(ctx, in)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	}
}

func TestBuybackService_CreateOffer_Ownership(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	bob := f.customer(t, "Bob")

	shared := f.submission(t, f.alice.ID, bob.ID)
	sharedUnowned := f.card(t, shared.ID, nil, "9")
	bobCard := f.card(t, shared.ID, &bob.ID, "8")
	ungraded := f.card(t, shared.ID, &f.alice.ID, "")

	tests := []struct {
		name   string
		cardID int64
		reason string
	}{
		{"他人卡片", bobCard.ID, "不属于该客户"},
		{"共享送评单中未指定归属", sharedUnowned.ID, "不属于该客户"},
		{"尚未评级", ungraded.ID, "尚未评级"},
		{"卡片不存在", 99999, "卡片不存在"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.offerInput()
			in.Items[1].CardID = tt.cardID
			_, err := f.svc.CreateOffer(ctx, in)

			var ownership *InvalidCardOwnershipError
			require.True(t, errors.As(err, &ownership), "err = %v", err)
			assert.Equal(t, tt.cardID, ownership.CardID)
			assert.Equal(t, tt.reason, ownership.Reason)
		})
	}

	offers, err := f.svc.ListByCustomer(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestBuybackService_CreateOffer_CardAlreadyOffered(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)

	_, err := f.svc.CreateOffer(ctx, f.offerInput())
	assert.ErrorIs(t, err, ErrCardAlreadyOffered)

	// 拒绝后卡片释放
	_, err = f.svc.Respond(ctx, offer.ID, OfferActionDecline, f.customerParty())
	require.NoError(t, err)
	_, err = f.svc.CreateOffer(ctx, f.offerInput())
	assert.NoError(t, err)
}

func TestBuybackService_CreateOffer_ConcurrentSameCard(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateOffer(ctx, f.offerInput())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrCardAlreadyOffered)
	}
	assert.Equal(t, 1, succeeded)

	offers, err := f.svc.ListByCustomer(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestBuybackService_Respond_Accept(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)

	f.clock.Advance(time.Hour)
	accepted, err := f.svc.Respond(ctx, offer.ID, OfferActionAccept, f.customerParty())
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)
	assert.Equal(t, testEpoch.Add(time.Hour), accepted.RespondedAt.UTC())
	assert.Equal(t, f.customerParty().String(), accepted.RespondedBy)

	_, err = f.svc.Respond(ctx, offer.ID, OfferActionDecline, f.customerParty())
	var already *AlreadyRespondedError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, string(model.OfferStatusAccepted), already.Status)
}

func TestBuybackService_Respond_ConcurrentOnlyOneWins(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		action := OfferActionAccept
		if i%2 == 1 {
			action = OfferActionDecline
		}
		wg.Add(1)
		go func(action OfferAction) {
			defer wg.Done()
			_, err := f.svc.Respond(ctx, offer.ID, action, f.customerParty())
			errs <- err
		}(action)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyResponded)
	}
	assert.Equal(t, 1, succeeded)
}

func TestBuybackService_Respond_LazyExpiry(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)

	f.clock.Advance(48 * time.Hour)
	_, err := f.svc.Respond(ctx, offer.ID, OfferActionAccept, f.customerParty())
	var expired *OfferExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, offer.ID, expired.OfferID)

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusExpired, stored.Status)
	assert.Nil(t, stored.RespondedAt)

	_, err = f.svc.Respond(ctx, offer.ID, OfferActionAccept, f.customerParty())
	assert.ErrorIs(t, err, ErrAlreadyResponded)
}

func TestBuybackService_Respond_OtherCustomerCannotSeeOffer(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)
	bob := f.customer(t, "Bob")

	_, err := f.svc.Respond(ctx, offer.ID, OfferActionAccept, ActingParty{Role: PartyCustomer, CustomerID: bob.ID})
	assert.ErrorIs(t, err, ErrOfferNotFound)

	_, err = f.svc.Respond(ctx, 99999, OfferActionAccept, f.customerParty())
	assert.ErrorIs(t, err, ErrOfferNotFound)

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusPending, stored.Status)
}

func TestBuybackService_Cancel(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	staff := ActingParty{Role: PartyStaff, StaffID: 7}
	offer := f.createOffer(t)

	// 待回复的报价不能撤销
	_, err := f.svc.Respond(ctx, offer.ID, OfferActionCancel, staff)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Respond(ctx, offer.ID, OfferActionAccept, f.customerParty())
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, offer.ID, OfferActionCancel, f.customerParty())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := f.svc.Respond(ctx, offer.ID, OfferActionCancel, staff)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.MarkPaid(ctx, offer.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBuybackService_MarkPaid(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)

	_, err := f.svc.MarkPaid(ctx, offer.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Respond(ctx, offer.ID, OfferActionAccept, f.customerParty())
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	paid, err := f.svc.MarkPaid(ctx, offer.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, model.OfferStatusAccepted, paid.Status)

	_, err = f.svc.MarkPaid(ctx, offer.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// 付款后不可撤销
	_, err = f.svc.Respond(ctx, offer.ID, OfferActionCancel, ActingParty{Role: PartyStaff, StaffID: 7})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBuybackService_Respond_PayoutTampered(t *testing.T) {
	f := newBuybackFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t)

	require.NoError(t, f.db.Model(&model.BuybackOffer{}).Where("id = ?", offer.ID).
		Update("final_payout", decimal.NewFromInt(100)).Error)

	_, err := f.svc.Respond(ctx, offer.ID, OfferActionAccept, f.customerParty())
	assert.ErrorIs(t, err, ErrPayoutMismatch)

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusPending, stored.Status)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grading_sync_v1/internal/model"
)

func TestSubmissionService_Create(t *testing.T) {
	f := newDomainFixture(t)
	svc := NewSubmissionService(f.submissions, f.companies, f.customers)
	ctx := context.Background()
	alice := f.customer(t, "Alice")
	bob := f.customer(t, "Bob")

	sub, err := svc.Create(ctx, CreateSubmissionInput{
		CompanyID:      f.company.ID,
		ExternalNumber: " 12345 ",
		ServiceLevel:   "Value",
		CustomerIDs:    []int64{alice.ID, bob.ID, alice.ID},
		Cards: []CreateCardInput{
			{Description: "1999 Charizard", CustomerOwnerID: &alice.ID, CertNumber: "C-1"},
			{Description: "1999 Blastoise"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", sub.ExternalNumberValue())
	assert.Equal(t, model.LifecycleReceived, sub.Lifecycle)

	got, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, got.Cards, 2)
	assert.Len(t, got.Customers, 2)
	for _, c := range got.Cards {
		assert.Equal(t, model.CardStatusPending, c.Status)
	}

	_, err = svc.Get(ctx, 99999)
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionService_Create_Rejections(t *testing.T) {
	f := newDomainFixture(t)
	svc := NewSubmissionService(f.submissions, f.companies, f.customers)
	ctx := context.Background()
	alice := f.customer(t, "Alice")
	bob := f.customer(t, "Bob")

	existing, err := svc.Create(ctx, CreateSubmissionInput{CompanyID: f.company.ID, ExternalNumber: "555"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateSubmissionInput{CompanyID: f.company.ID, ExternalNumber: "555"})
	var dup *DuplicateExternalNumberError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, existing.ID, dup.ExistingSubmissionID)

	_, err = svc.Create(ctx, CreateSubmissionInput{CompanyID: 99999})
	assert.ErrorIs(t, err, ErrCompanyNotFound)

	_, err = svc.Create(ctx, CreateSubmissionInput{CompanyID: f.company.ID, CustomerIDs: []int64{alice.ID, 99999}})
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = svc.Create(ctx, CreateSubmissionInput{
		CompanyID:   f.company.ID,
		CustomerIDs: []int64{alice.ID},
		Cards:       []CreateCardInput{{Description: "card", CustomerOwnerID: &bob.ID}},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Create(ctx, CreateSubmissionInput{
		CompanyID: f.company.ID,
		Cards:     []CreateCardInput{{Description: "  "}},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Create(ctx, CreateSubmissionInput{
		CompanyID: f.company.ID,
		Cards:     []CreateCardInput{{Description: "a", CertNumber: "C-9"}, {Description: "b", CertNumber: "C-9"}},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmissionService_Delete(t *testing.T) {
	f := newDomainFixture(t)
	svc := NewSubmissionService(f.submissions, f.companies, f.customers)
	ctx := context.Background()
	alice := f.customer(t, "Alice")

	sub, err := svc.Create(ctx, CreateSubmissionInput{
		CompanyID:      f.company.ID,
		ExternalNumber: "777",
		CustomerIDs:    []int64{alice.ID},
		Cards:          []CreateCardInput{{Description: "card"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sub.ID))
	assert.ErrorIs(t, svc.Delete(ctx, sub.ID), ErrSubmissionNotFound)

	cards, err := f.cards.ListBySubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	// 删除后外部编号可重新使用
	_, err = svc.Create(ctx, CreateSubmissionInput{CompanyID: f.company.ID, ExternalNumber: "777"})
	assert.NoError(t, err)
}

package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/model"
)

func TestSyncService_SyncOne_GradingThenShipped(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	sub := f.createSubmission(t, "12345")

	steps, err := f.submissions.ListSteps(ctx, sub.ID)
	require.NoError(t, err)
	require.Empty(t, steps)

	f.server.setProgress("12345", "Grading")
	result, err := f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)

	got := result.Submission
	assert.Equal(t, "Grading", got.CurrentStep)
	assert.Equal(t, 60, got.ProgressPercent)
	assert.False(t, got.GradesReady)
	assert.False(t, got.Shipped)
	assert.Equal(t, "ORD-12345", got.OrderNumber)
	assert.True(t, result.Changed)

	steps, err = f.submissions.ListSteps(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, steps, len(PipelineSteps))
	for i, s := range steps {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, i < StepGrading, s.Completed, "step %s", s.Name)
	}

	f.clock.Advance(61 * time.Second)
	f.server.setProgress("12345", "Shipped")
	result, err = f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)

	stored, err := f.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.ProgressPercent)
	assert.True(t, stored.Shipped)
	assert.True(t, stored.GradesReady)
	assert.Equal(t, model.LifecycleShipped, stored.Lifecycle)
	assert.NoError(t, stored.Validate())
	require.NotNil(t, stored.LastSyncedAt)

	steps, err = f.submissions.ListSteps(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, steps, len(PipelineSteps))
	for _, s := range steps {
		assert.True(t, s.Completed)
	}
}

func TestSyncService_SyncOne_RateLimitedWithoutNetworkCall(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	first := f.createSubmission(t, "A-1")
	second := f.createSubmission(t, "A-2")
	f.server.setProgress("A-1", "Arrived")
	f.server.setProgress("A-2", "Arrived")

	_, err := f.svc.SyncOne(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.server.hitCount())

	f.clock.Advance(10 * time.Second)
	_, err = f.svc.SyncOne(ctx, second.ID)
	require.ErrorIs(t, err, ErrRateLimited)

	var limited *RateLimitedError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, 50*time.Second, limited.RetryAfter)
	assert.Equal(t, 1, f.server.hitCount())

	f.clock.Advance(50 * time.Second)
	_, err = f.svc.SyncOne(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.server.hitCount())
}

func TestSyncService_SyncOne_NotConfigured(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	noNumber := f.createSubmission(t, "")
	_, err := f.svc.SyncOne(ctx, noNumber.ID)
	var notConfigured *NotConfiguredError
	require.True(t, errors.As(err, &notConfigured))
	assert.Equal(t, MissingExternalNumber, notConfigured.Missing)
	assert.Equal(t, noNumber.ID, notConfigured.SubmissionID)

	bare := &model.Company{Name: "No Key"}
	require.NoError(t, f.companies.Create(ctx, bare))
	sub := &model.Submission{CompanyID: bare.ID, ExternalNumber: strPtr("NK-1")}
	require.NoError(t, f.submissions.Create(ctx, sub))
	_, err = f.svc.SyncOne(ctx, sub.ID)
	require.True(t, errors.As(err, &notConfigured))
	assert.Equal(t, MissingCredential, notConfigured.Missing)

	// 配置错误不占用冷却窗口
	ok := f.createSubmission(t, "OK-1")
	f.server.setProgress("OK-1", "Arrived")
	_, err = f.svc.SyncOne(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.server.hitCount())

	_, err = f.svc.SyncOne(ctx, 99999)
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSyncService_SyncOne_NeverRegresses(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	sub := f.createSubmission(t, "M-1")

	f.server.setProgress("M-1", "Assembly")
	_, err := f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	f.server.setProgress("M-1", "Order Prep")
	result, err := f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed)

	stored, err := f.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, stored.ProgressPercent)
	assert.Equal(t, "Assembly", stored.CurrentStep)
	assert.True(t, stored.GradesReady)

	steps, err := f.submissions.ListSteps(ctx, sub.ID)
	require.NoError(t, err)
	for _, s := range steps[:StepAssembly] {
		assert.True(t, s.Completed, "step %s", s.Name)
	}
}

func TestSyncService_SyncOne_AlarmFlagsNotCleared(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	sub := f.createSubmission(t, "P-1")

	f.server.setRawProgress("P-1", dto.GradingProgressResponse{
		SubmissionNumber: "P-1",
		CurrentStep:      "Research & ID",
		ProblemOrder:     true,
		AccountingHold:   true,
	})
	_, err := f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	f.server.setProgress("P-1", "Grading")
	_, err = f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)

	stored, err := f.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.ProblemOrder)
	assert.True(t, stored.AccountingHold)
	assert.Equal(t, 60, stored.ProgressPercent)
}

func TestSyncService_SyncOne_UnknownStep(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	sub := f.createSubmission(t, "U-1")

	f.server.setRawProgress("U-1", dto.GradingProgressResponse{
		CurrentStep: "Card Review",
		Steps: []dto.GradingProgressStep{
			{Name: "Arrived", Completed: true},
			{Name: "Order Prep", Completed: true},
			{Name: "Card Review"},
			{Name: "Grading"},
		},
	})
	result, err := f.svc.SyncOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, result.Mapping.Unknown)

	stored, err := f.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Order Prep", stored.CurrentStep)
	assert.Equal(t, "Card Review", stored.UnknownStep)
	assert.Equal(t, 20, stored.ProgressPercent)
}

func TestSyncService_SyncOne_ExternalErrorCountsAgainstCooldown(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	sub := f.createSubmission(t, "X-1")
	f.server.fail("X-1", http.StatusBadGateway)

	_, err := f.svc.SyncOne(ctx, sub.ID)
	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, http.StatusBadGateway, extErr.StatusCode)

	stored, err := f.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ProgressPercent)
	assert.Nil(t, stored.LastSyncedAt)

	_, err = f.svc.SyncOne(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, f.server.hitCount())
}

func TestSyncService_SyncAll(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	ok1 := f.createSubmission(t, "B-1")
	bad := f.createSubmission(t, "B-2")
	ok2 := f.createSubmission(t, "B-3")
	f.createSubmission(t, "")
	shipped := &model.Submission{CompanyID: f.company.ID, ExternalNumber: strPtr("B-4"), Shipped: true, GradesReady: true}
	require.NoError(t, f.submissions.Create(ctx, shipped))

	f.server.setProgress("B-1", "Grading")
	f.server.fail("B-2", http.StatusInternalServerError)
	f.server.setProgress("B-3", "Assembly")

	start := f.clock.Now()
	result, err := f.svc.SyncAll(ctx, f.company.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Results, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad.ID, result.Failures[0].SubmissionID)
	assert.Equal(t, "B-2", result.Failures[0].ExternalNumber)
	assert.ErrorIs(t, result.Failures[0].Err, ErrExternalService)
	assert.Equal(t, 3, f.server.hitCount())

	// 批量内调用间隔
	assert.GreaterOrEqual(t, f.clock.Now().Sub(start), 2*time.Second)

	s1, err := f.submissions.GetByID(ctx, ok1.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, s1.ProgressPercent)
	s3, err := f.submissions.GetByID(ctx, ok2.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, s3.ProgressPercent)

	_, err = f.svc.SyncAll(ctx, f.company.ID)
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = f.svc.SyncOne(ctx, ok1.ID)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, f.server.hitCount())
}

func TestSyncService_CallSpacingSharedAcrossPaths(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	single := f.createSubmission(t, "S-1")
	f.createSubmission(t, "S-2")
	withCert := &model.Card{SubmissionID: single.ID, Description: "Charizard", CertNumber: strPtr("C9")}
	require.NoError(t, f.cards.Create(ctx, withCert))
	f.server.setProgress("S-1", "Grading")
	f.server.setProgress("S-2", "Order Prep")
	f.server.setCertificate(gradingCert("C9", "10"))
	spacing := DefaultSyncIntervals().CallSpacing

	start := f.clock.Now()
	_, err := f.svc.SyncOne(ctx, single.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.server.hitCount())

	// 单个刷新之后立即补全卡片，调用间隔未到
	_, err = f.svc.EnrichCard(ctx, withCert.ID)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, f.server.hitCount())

	// 紧接着的批量同步必须先等满间隔
	result, err := f.svc.SyncAll(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, 3, f.server.hitCount())
	assert.GreaterOrEqual(t, f.clock.Now().Sub(start), 2*spacing)
}

func TestSyncService_AttachExternalNumber(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	owner := f.createSubmission(t, "111")
	other := f.createSubmission(t, "")

	_, err := f.svc.AttachExternalNumber(ctx, other.ID, "111")
	var dup *DuplicateExternalNumberError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, owner.ID, dup.ExistingSubmissionID)
	assert.Equal(t, other.ID, dup.SubmissionID)

	// 两条记录都未被修改
	storedOwner, err := f.submissions.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "111", storedOwner.ExternalNumberValue())
	storedOther, err := f.submissions.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, storedOther.HasExternalNumber())

	attached, err := f.svc.AttachExternalNumber(ctx, other.ID, " 222 ")
	require.NoError(t, err)
	assert.Equal(t, "222", attached.ExternalNumberValue())

	// 重复绑定同一编号幂等
	_, err = f.svc.AttachExternalNumber(ctx, other.ID, "222")
	require.NoError(t, err)

	_, err = f.svc.AttachExternalNumber(ctx, other.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.AttachExternalNumber(ctx, 99999, "333")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSyncService_EnrichCard(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	sub := f.createSubmission(t, "E-1")

	fresh := &model.Card{SubmissionID: sub.ID, Description: "Charizard", CertNumber: strPtr("C1")}
	manual := &model.Card{SubmissionID: sub.ID, Description: "Blastoise", CertNumber: strPtr("C2"),
		Grade: "8", GradeSource: model.GradeSourceManual, Status: model.CardStatusGraded, Year: "2000"}
	noCert := &model.Card{SubmissionID: sub.ID, Description: "Venusaur"}
	for _, c := range []*model.Card{fresh, manual, noCert} {
		require.NoError(t, f.cards.Create(ctx, c))
	}
	f.server.setCertificate(gradingCert("C1", "10"))
	f.server.setCertificate(gradingCert("C2", "9"))

	card, err := f.svc.EnrichCard(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", card.Grade)
	assert.Equal(t, model.GradeSourceGradingService, card.GradeSource)
	assert.Equal(t, model.CardStatusGraded, card.Status)
	assert.Equal(t, "1999", card.Year)
	assert.Equal(t, "Charizard", card.Player)
	assert.Equal(t, model.StringList{"https://img.example/C1-front.jpg", "https://img.example/C1-back.jpg"}, card.ImageRefs)

	f.clock.Advance(time.Second)
	card, err = f.svc.EnrichCard(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, "9", card.Grade)
	// 已有字段不覆盖
	assert.Equal(t, "2000", card.Year)

	_, err = f.svc.EnrichCard(ctx, noCert.ID)
	var notConfigured *NotConfiguredError
	require.True(t, errors.As(err, &notConfigured))
	assert.Equal(t, MissingCertNumber, notConfigured.Missing)
}

func TestEnrichFields_KeepsHigherConfidenceGrade(t *testing.T) {
	card := &model.Card{Grade: "10", GradeSource: model.GradeSourceGradingService}
	fields := enrichFields(card, &dto.GradingCertificateResponse{Grade: "9"})
	assert.Equal(t, "9", fields["grade"])

	card = &model.Card{Grade: "10", GradeSource: "future_source"}
	fields = enrichFields(card, &dto.GradingCertificateResponse{Grade: "9"})
	assert.Empty(t, fields)
}

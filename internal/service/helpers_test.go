package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/repository"
	"grading_sync_v1/pkg/clock"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 SQL DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// ==================== 评级机构模拟 ====================

// fakeGradingServer 可编程的评级机构接口
type fakeGradingServer struct {
	*httptest.Server

	mu           sync.Mutex
	progress     map[string]dto.GradingProgressResponse
	certificates map[string]dto.GradingCertificateResponse
	failStatus   map[string]int
	hits         int32
	lastAuth     string
}

func newFakeGradingServer(t *testing.T) *fakeGradingServer {
	f := &fakeGradingServer{
		progress:     map[string]dto.GradingProgressResponse{},
		certificates: map[string]dto.GradingCertificateResponse{},
		failStatus:   map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGradingServer) handle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.hits, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case len(parts) == 3 && parts[0] == "submissions" && parts[2] == "progress":
		if status, ok := f.failStatus[parts[1]]; ok {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"upstream failure"}`))
			return
		}
		resp, ok := f.progress[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"submission not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	case len(parts) == 2 && parts[0] == "certificates":
		resp, ok := f.certificates[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"cert not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGradingServer) setProgress(number, currentStep string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	steps := make([]dto.GradingProgressStep, 0, len(PipelineSteps))
	idx, _ := LookupStep(currentStep)
	for i, name := range PipelineSteps {
		steps = append(steps, dto.GradingProgressStep{Name: name, Completed: i < idx || idx == StepShipped})
	}
	f.progress[number] = dto.GradingProgressResponse{
		SubmissionNumber: number,
		OrderNumber:      "ORD-" + number,
		ServiceLevel:     "Value",
		CurrentStep:      currentStep,
		Steps:            steps,
	}
}

func (f *fakeGradingServer) setRawProgress(number string, resp dto.GradingProgressResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[number] = resp
}

func (f *fakeGradingServer) setCertificate(cert dto.GradingCertificateResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.certificates[cert.CertNumber] = cert
}

func (f *fakeGradingServer) fail(number string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus[number] = status
}

func (f *fakeGradingServer) authHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *fakeGradingServer) hitCount() int {
	return int(atomic.LoadInt32(&f.hits))
}

// ==================== 测试环境 ====================

type syncFixture struct {
	db          *gorm.DB
	clock       *clock.Fake
	server      *fakeGradingServer
	limiter     *middleware.SyncRateLimiter
	submissions repository.SubmissionRepository
	cards       repository.CardRepository
	companies   repository.CompanyRepository
	customers   repository.CustomerRepository
	svc         *SyncService
	company     *model.Company
}

func newSyncFixture(t *testing.T) *syncFixture {
	db := setupTestDB(t)
	clk := clock.NewFake(testEpoch)
	server := newFakeGradingServer(t)

	f := &syncFixture{
		db:          db,
		clock:       clk,
		server:      server,
		limiter:     middleware.NewSyncRateLimiter(clk),
		submissions: repository.NewSubmissionRepository(db),
		cards:       repository.NewCardRepository(db),
		companies:   repository.NewCompanyRepository(db),
		customers:   repository.NewCustomerRepository(db),
	}

	f.company = &model.Company{Name: "Card Shop", GradingAPIKey: "secret-key"}
	if err := f.companies.Create(context.Background(), f.company); err != nil {
		t.Fatalf("创建卡店失败: %v", err)
	}

	client := NewGradingClient(GradingClientConfig{BaseURL: server.URL, Timeout: 2 * time.Second})
	f.svc = NewSyncService(f.submissions, f.cards, f.companies, client, f.limiter, clk, DefaultSyncIntervals())
	return f
}

func (f *syncFixture) createSubmission(t *testing.T, number string) *model.Submission {
	s := &model.Submission{CompanyID: f.company.ID, Lifecycle: model.LifecycleReceived}
	if number != "" {
		s.ExternalNumber = &number
	}
	if err := f.submissions.Create(context.Background(), s); err != nil {
		t.Fatalf("创建送评单失败: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func gradingCert(cert, grade string) dto.GradingCertificateResponse {
	return dto.GradingCertificateResponse{
		CertNumber: cert,
		Grade:      grade,
		Year:       "1999",
		Brand:      "Pokemon Base Set",
		Subject:    "Charizard",
		CardNumber: "4",
		ImageURLs:  []string{"https://img.example/" + cert + "-front.jpg", "https://img.example/" + cert + "-back.jpg"},
	}
}

// ==================== 业务数据 ====================

type domainFixture struct {
	db          *gorm.DB
	clock       *clock.Fake
	companies   repository.CompanyRepository
	customers   repository.CustomerRepository
	submissions repository.SubmissionRepository
	cards       repository.CardRepository
	tokens      repository.PortalTokenRepository
	offers      repository.BuybackRepository
	company     *model.Company
}

func newDomainFixture(t *testing.T) *domainFixture {
	db := setupTestDB(t)
	f := &domainFixture{
		db:          db,
		clock:       clock.NewFake(testEpoch),
		companies:   repository.NewCompanyRepository(db),
		customers:   repository.NewCustomerRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		cards:       repository.NewCardRepository(db),
		tokens:      repository.NewPortalTokenRepository(db),
		offers:      repository.NewBuybackRepository(db),
	}
	f.company = &model.Company{Name: "Card Shop", GradingAPIKey: "secret-key"}
	if err := f.companies.Create(context.Background(), f.company); err != nil {
		t.Fatalf("创建卡店失败: %v", err)
	}
	return f
}

func (f *domainFixture) customer(t *testing.T, name string) *model.Customer {
	c := &model.Customer{CompanyID: f.company.ID, Name: name}
	if err := f.customers.Create(context.Background(), c); err != nil {
		t.Fatalf("创建客户失败: %v", err)
	}
	return c
}

// submission 创建送评单并关联客户
func (f *domainFixture) submission(t *testing.T, customerIDs ...int64) *model.Submission {
	ctx := context.Background()
	s := &model.Submission{CompanyID: f.company.ID, Lifecycle: model.LifecycleReceived}
	if err := f.submissions.Create(ctx, s); err != nil {
		t.Fatalf("创建送评单失败: %v", err)
	}
	if err := f.submissions.LinkCustomers(ctx, s.ID, customerIDs); err != nil {
		t.Fatalf("关联客户失败: %v", err)
	}
	return s
}

// card 创建卡片，grade 为空表示未评级
func (f *domainFixture) card(t *testing.T, submissionID int64, owner *int64, grade string) *model.Card {
	c := &model.Card{SubmissionID: submissionID, CustomerOwnerID: owner, Description: "card", Status: model.CardStatusPending}
	if grade != "" {
		c.Grade = grade
		c.GradeSource = model.GradeSourceManual
		c.Status = model.CardStatusGraded
	}
	if err := f.cards.Create(context.Background(), c); err != nil {
		t.Fatalf("创建卡片失败: %v", err)
	}
	return c
}

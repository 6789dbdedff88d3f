package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printshop/internal/auth"
	"printshop/internal/careers"
	"printshop/internal/certificate"
	"printshop/internal/config"
	"printshop/internal/docstore"
	"printshop/internal/idgen"
	"printshop/internal/queue"
	"printshop/internal/report"
	"printshop/internal/shop"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminEmail    = "admin@example.com"
	adminPassword = "correct-horse"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) published() []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Message(nil), p.msgs...)
}

// downStore fails every read as if the database were unreachable.
type downStore struct {
	*docstore.Memory
}

func (downStore) Get(context.Context, string, string) (docstore.Document, error) {
	return docstore.Document{}, fmt.Errorf("%w: connection refused", docstore.ErrUnavailable)
}

type fixture struct {
	router  *gin.Engine
	certs   *certificate.Service
	auth    *auth.Service
	archive *recordingPublisher
}

func newFixture(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	cfg := config.App{JWTIssuer: "test-issuer", JWTSigningKey: "test-key", RateLimitPerMin: 1000}
	ids := idgen.New(idgen.NewMemoryCounter(), nil)
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	certs := certificate.NewService(certificate.NewRepository(store), ids, certificate.Options{
		Courses: []string{"Mechanical Design Engineer - SolidWorks"},
		Now:     func() time.Time { return now },
	})
	authSvc := auth.NewService(store, auth.Settings{Issuer: cfg.JWTIssuer, SigningKey: cfg.JWTSigningKey}, nil)
	pub := &recordingPublisher{}
	r := NewRouter(Deps{
		Config:       cfg,
		Certificates: certs,
		Careers:      careers.NewService(store, ids, nil, nil),
		Shop:         shop.NewService(store, ids, 96*time.Hour, nil, nil),
		Auth:         authSvc,
		Renderer:     report.NewRenderer("InvenTek 3D"),
		Archive:      pub,
	})
	return &fixture{router: r, certs: certs, auth: authSvc, archive: pub}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	_, err := f.auth.AddAdmin(context.Background(), adminEmail, adminPassword, "admin")
	require.NoError(t, err)
	w := f.do(t, http.MethodPost, "/api/v1/admin/login", "", gin.H{"email": adminEmail, "password": adminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok auth.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func (f *fixture) seedCertificate(t *testing.T) certificate.Certificate {
	t.Helper()
	expiry := civil.Date{Year: 2024, Month: 1, Day: 20}
	c, err := f.certs.Create(context.Background(), certificate.Input{
		CandidateName:    "Asha Rao",
		Course:           "Mechanical Design Engineer - SolidWorks",
		IssueDate:        civil.Date{Year: 2023, Month: 1, Day: 20},
		CompletionDate:   civil.Date{Year: 2023, Month: 1, Day: 15},
		ExpiryDate:       &expiry,
		PerformanceScore: 88,
	})
	require.NoError(t, err)
	return c
}

func TestVerifyEndpoint(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())
	f.seedCertificate(t)

	w := f.do(t, http.MethodGet, "/api/v1/certificates/verify?id=%20itek001cer001%20", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res certificate.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "ITEK001CER001", res.ID)
	assert.Equal(t, certificate.StatusValid, res.Status)
	assert.Equal(t, certificate.ExpiringSoon, res.ExpiryStatus)
	assert.Equal(t, 88, res.Score)

	w = f.do(t, http.MethodGet, "/api/v1/certificates/verify?id=ZZZ999", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, certificate.StatusInvalid, res.Status)
	assert.Equal(t, certificate.NotAvailable, res.Name)

	w = f.do(t, http.MethodGet, "/api/v1/certificates/verify", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyLookupFailure(t *testing.T) {
	f := newFixture(t, downStore{docstore.NewMemory()})

	w := f.do(t, http.MethodGet, "/api/v1/certificates/verify?id=ITEK001CER001", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["retryable"])
}

func TestReportDownload(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())
	f.seedCertificate(t)

	w := f.do(t, http.MethodGet, "/api/v1/certificates/verify/report?id=ITEK001CER001&archive=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Certificate_Verification_ITEK001CER001.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	msgs := f.archive.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.TypeArchiveReport, msgs[0].Type)

	// Reports for unknown ids still download but are never archived.
	w = f.do(t, http.MethodGet, "/api/v1/certificates/verify/report?id=NOPE&archive=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Certificate_Verification_NOPE.pdf")
	assert.Len(t, f.archive.published(), 1)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())

	w := f.do(t, http.MethodGet, "/api/v1/admin/certificates", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/certificates", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err := f.auth.AddAdmin(context.Background(), adminEmail, adminPassword, "admin")
	require.NoError(t, err)
	w = f.do(t, http.MethodPost, "/api/v1/admin/login", "", gin.H{"email": adminEmail, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminCertificateLifecycle(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())
	token := f.login(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/certificates", token, gin.H{
		"candidateName":    "Ravi Kumar",
		"courseOrWorkshop": "Mechanical Design Engineer - SolidWorks",
		"issueDate":        "2023-06-01",
		"completionDate":   "2023-05-30",
		"lifetime":         true,
		"performanceScore": 91,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created certificate.Certificate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "ITEK001CER001", created.ID)
	assert.Nil(t, created.ExpiryDate)

	w = f.do(t, http.MethodPost, "/api/v1/admin/certificates", token, gin.H{
		"candidateName":    "Bad Course",
		"courseOrWorkshop": "Underwater Basket Weaving",
		"issueDate":        "2023-06-01",
		"completionDate":   "2023-05-30",
		"lifetime":         true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/api/v1/admin/certificates/itek001cer001", token, gin.H{"performanceScore": 95})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view certificate.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 95, view.PerformanceScore)
	assert.Equal(t, certificate.ExpiryLifetime, view.ExpiryStatus)

	w = f.do(t, http.MethodGet, "/api/v1/admin/certificates/export.csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, w.Body.String(), "ITEK001CER001")
	assert.Contains(t, w.Body.String(), "Ravi Kumar")

	w = f.do(t, http.MethodGet, "/api/v1/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Certificates certificate.Stats `json:"certificates"`
		Products     int               `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.Equal(t, 1, dash.Certificates.Total)
	assert.Equal(t, 1, dash.Certificates.Lifetime)
	assert.Zero(t, dash.Products)

	w = f.do(t, http.MethodDelete, "/api/v1/admin/certificates/ITEK001CER001", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/admin/certificates/ITEK001CER001", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCareersAndShopRoutes(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())
	token := f.login(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/jobs", token, gin.H{
		"title":       "Design Engineer",
		"description": "CAD modelling for client prints",
		"status":      "Active",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job careers.Posting
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "ITEKJ001", job.ID)

	w = f.do(t, http.MethodGet, "/api/v1/careers/jobs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ITEKJ001")

	w = f.do(t, http.MethodPost, "/api/v1/careers/applications", "", gin.H{
		"fullName": "Meera Iyer",
		"email":    "meera@example.com",
		"phone":    "9876543210",
		"jobId":    "itekj001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/careers/newsletter", "", gin.H{"email": "Meera@Example.com"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/careers/newsletter", "", gin.H{"email": "meera@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/admin/products", token, gin.H{
		"name":      "Planetary gearbox",
		"price":     1499,
		"category":  "Mechanical",
		"inventory": 10,
		"status":    "Active",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/shop/orders", "", gin.H{
		"fullName":      "Meera Iyer",
		"email":         "meera@example.com",
		"phone":         "9876543210",
		"productId":     "PROD001",
		"quantity":      2,
		"paymentMethod": "upi",
		"shipping": gin.H{
			"line1":   "12 MG Road",
			"city":    "Bengaluru",
			"state":   "Karnataka",
			"pincode": "560001",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order shop.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.EqualValues(t, 2998, order.TotalAmount)

	w = f.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", token, gin.H{"status": "Teleporting"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", token, gin.H{"status": "Completed"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/orders/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st shop.OrderStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Completed)
	assert.EqualValues(t, 2998, st.Revenue)

	w = f.do(t, http.MethodGet, "/api/v1/admin/applications/export.csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "meera@example.com")
}

func TestHealthz(t *testing.T) {
	r := NewRouter(Deps{
		Config: config.App{RateLimitPerMin: 100},
		Health: []HealthCheck{
			{Name: "db", Check: func(context.Context) bool { return true }},
			{Name: "redis", Check: func(context.Context) bool { return false }},
		},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":false`)
}

func TestStreamCertificates(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())
	token := f.login(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/admin/certificates/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	nextData := func() []certificate.View {
		t.Helper()
		for lines.Scan() {
			line := lines.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var views []certificate.View
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &views))
			return views
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	assert.Empty(t, nextData())
	f.seedCertificate(t)
	views := nextData()
	require.Len(t, views, 1)
	assert.Equal(t, "ITEK001CER001", views[0].ID)
}

func TestReportFilenameIsQuoted(t *testing.T) {
	f := newFixture(t, docstore.NewMemory())

	w := f.do(t, http.MethodGet, "/api/v1/certificates/verify/report?id=ab%22cd", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="Certificate_Verification_AB\"CD.pdf"`, w.Header().Get("Content-Disposition"))
}

func TestDisabledAdminTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemory())
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/api/v1/admin/certificates", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, f.auth.SetActive(ctx, adminEmail, false))
	w = f.do(t, http.MethodGet, "/api/v1/admin/certificates", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/admin/certificates", token, gin.H{"candidateName": "X"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, f.auth.SetActive(ctx, adminEmail, true))
	w = f.do(t, http.MethodGet, "/api/v1/admin/certificates", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

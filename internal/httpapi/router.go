// Package httpapi exposes the public and admin JSON API over gin.
package httpapi

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"printshop/internal/auth"
	"printshop/internal/careers"
	"printshop/internal/certificate"
	"printshop/internal/config"
	"printshop/internal/httpmiddleware"
	"printshop/internal/metrics"
	"printshop/internal/queue"
	"printshop/internal/report"
	"printshop/internal/shop"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

// Deps is everything the router needs. Archive may be nil when report
// archiving is disabled.
type Deps struct {
	Config       config.App
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Certificates *certificate.Service
	Careers      *careers.Service
	Shop         *shop.Service
	Auth         *auth.Service
	Renderer     *report.Renderer
	Archive      queue.Publisher
	Health       []HealthCheck
}

type api struct {
	Deps
	log *zap.Logger
	now func() time.Time
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	a := &api{Deps: d, log: d.Logger.With(zap.String("component", "http")), now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.RequestLogger(a.log, d.Metrics, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders(d.Config.Production()))
	r.Use(httpmiddleware.NewTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin).GinMiddleware())

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", a.healthz)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/certificates/verify", a.verifyCertificate)
		v1.GET("/certificates/verify/report", a.certificateReport)
		v1.GET("/certificates/courses", a.listCourses)

		v1.GET("/careers/jobs", a.publicPostings(kindJob))
		v1.GET("/careers/internships", a.publicPostings(kindInternship))
		v1.POST("/careers/applications", a.apply)
		v1.POST("/careers/newsletter", a.subscribe)

		v1.GET("/shop/products", a.publicProducts)
		v1.POST("/shop/orders", a.placeOrder)
	}

	v1.POST("/admin/login", a.login)
	admin := v1.Group("/admin", auth.AdminAuth(d.Config.JWTSigningKey, d.Config.JWTIssuer), d.Auth.RequireActive())
	{
		admin.GET("/dashboard", a.dashboard)

		admin.GET("/certificates", a.listCertificates)
		admin.POST("/certificates", a.createCertificate)
		admin.GET("/certificates/expiring", a.expiringCertificates)
		admin.GET("/certificates/export.csv", a.exportCertificates)
		admin.GET("/certificates/stream", a.streamCertificates)
		admin.GET("/certificates/:id", a.getCertificate)
		admin.PATCH("/certificates/:id", a.updateCertificate)
		admin.DELETE("/certificates/:id", a.deleteCertificate)

		for _, kind := range []postingKind{kindJob, kindInternship} {
			base := "/" + kind.path
			admin.GET(base, a.adminPostings(kind))
			admin.POST(base, a.createPosting(kind))
			admin.GET(base+"/export.csv", a.exportPostings(kind))
			admin.PATCH(base+"/:id", a.updatePosting(kind))
			admin.DELETE(base+"/:id", a.deletePosting(kind))
		}

		admin.GET("/applications", a.listApplications)
		admin.GET("/applications/export.csv", a.exportApplications)
		admin.PATCH("/applications/:id/status", a.setApplicationStatus)
		admin.GET("/subscribers", a.listSubscribers)
		admin.GET("/subscribers/export.csv", a.exportSubscribers)

		admin.GET("/products", a.adminProducts)
		admin.POST("/products", a.createProduct)
		admin.GET("/products/export.csv", a.exportProducts)
		admin.PATCH("/products/:id", a.updateProduct)
		admin.DELETE("/products/:id", a.deleteProduct)

		admin.GET("/orders", a.listOrders)
		admin.GET("/orders/stats", a.orderStats)
		admin.GET("/orders/export.csv", a.exportOrders)
		admin.PATCH("/orders/:id/status", a.setOrderStatus)
	}
	return r
}

// corsConfig allows any origin when none or "*" is configured; credentials
// are only allowed for an explicit origin list.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (a *api) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	checks := gin.H{}
	for _, h := range a.Health {
		ok := h.Check(ctx)
		checks[h.Name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"ok": status == http.StatusOK, "checks": checks})
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printshop/internal/auth"
)

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *api) login(c *gin.Context) {
	var body loginBody
	if !bind(c, &body) {
		return
	}
	tok, err := a.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

// dashboard gathers the per-section counters shown on the admin home page.
func (a *api) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	certs, err := a.Certificates.Stats(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	counts, err := a.Careers.Counts(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	orders, err := a.Shop.OrderStats(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	products, err := a.Shop.ListProducts(ctx, false)
	if err != nil {
		a.fail(c, err)
		return
	}
	if claims, ok := auth.ClaimsFrom(c); ok {
		a.log.Debug("dashboard viewed", zap.String("admin", claims.Email))
	}
	c.JSON(http.StatusOK, gin.H{
		"certificates": certs,
		"careers":      counts,
		"orders":       orders,
		"products":     len(products),
	})
}

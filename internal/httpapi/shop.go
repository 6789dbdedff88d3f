package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"printshop/internal/csvexport"
	"printshop/internal/shop"
)

func (a *api) publicProducts(c *gin.Context) {
	products, err := a.Shop.ListProducts(c.Request.Context(), true)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *api) adminProducts(c *gin.Context) {
	products, err := a.Shop.ListProducts(c.Request.Context(), false)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *api) createProduct(c *gin.Context) {
	var in shop.ProductInput
	if !bind(c, &in) {
		return
	}
	p, err := a.Shop.CreateProduct(c.Request.Context(), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *api) updateProduct(c *gin.Context) {
	var patch shop.ProductPatch
	if !bind(c, &patch) {
		return
	}
	p, err := a.Shop.UpdateProduct(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *api) deleteProduct(c *gin.Context) {
	if err := a.Shop.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) exportProducts(c *gin.Context) {
	products, err := a.Shop.ListProducts(c.Request.Context(), false)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.sendCSV(c, "products.csv", csvexport.Rows(products))
}

func (a *api) placeOrder(c *gin.Context) {
	var in shop.OrderInput
	if !bind(c, &in) {
		return
	}
	o, err := a.Shop.PlaceOrder(c.Request.Context(), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (a *api) listOrders(c *gin.Context) {
	orders, err := a.Shop.ListOrders(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (a *api) orderStats(c *gin.Context) {
	st, err := a.Shop.OrderStats(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *api) exportOrders(c *gin.Context) {
	orders, err := a.Shop.ListOrders(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.sendCSV(c, "orders.csv", csvexport.Rows(orders))
}

func (a *api) setOrderStatus(c *gin.Context) {
	var body statusBody
	if !bind(c, &body) {
		return
	}
	if err := a.Shop.SetOrderStatus(c.Request.Context(), c.Param("id"), shop.OrderStatus(body.Status)); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": body.Status})
}

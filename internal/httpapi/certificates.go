package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printshop/internal/certificate"
	"printshop/internal/csvexport"
	"printshop/internal/queue"
	"printshop/internal/report"
)

func (a *api) verifyCertificate(c *gin.Context) {
	res, err := a.Certificates.Verify(c.Request.Context(), c.Query("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// certificateReport renders the verification result as a PDF download. With
// ?archive=true a copy of a valid certificate's report is queued for storage.
func (a *api) certificateReport(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := a.Certificates.Verify(ctx, c.Query("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	now := a.now()
	data, err := a.Renderer.Render(res, now.In(a.Config.Location()))
	a.Metrics.ReportRendered(err == nil)
	if err != nil {
		a.log.Error("report render failed", zap.String("id", res.ID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report could not be generated", "result": res})
		return
	}

	if c.Query("archive") == "true" && a.Archive != nil && res.Valid() {
		msg, err := queue.NewArchiveMessage(res.ID, now)
		if err == nil {
			err = a.Archive.Publish(ctx, msg)
		}
		if err != nil {
			a.log.Warn("archive enqueue failed", zap.String("id", res.ID), zap.Error(err))
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(res.ID)))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (a *api) listCourses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"courses": a.Certificates.Courses()})
}

func (a *api) listCertificates(c *gin.Context) {
	views, err := a.Certificates.List(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": views})
}

func (a *api) createCertificate(c *gin.Context) {
	var in certificate.Input
	if !bind(c, &in) {
		return
	}
	cert, err := a.Certificates.Create(c.Request.Context(), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

func (a *api) getCertificate(c *gin.Context) {
	v, err := a.Certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (a *api) updateCertificate(c *gin.Context) {
	var p certificate.Patch
	if !bind(c, &p) {
		return
	}
	v, err := a.Certificates.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (a *api) deleteCertificate(c *gin.Context) {
	if err := a.Certificates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) expiringCertificates(c *gin.Context) {
	views, err := a.Certificates.Expiring(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": views})
}

func (a *api) exportCertificates(c *gin.Context) {
	views, err := a.Certificates.List(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.sendCSV(c, "certificates.csv", csvexport.Rows(views))
}

// streamCertificates pushes the full admin list as server-sent events after
// every change until the client goes away.
func (a *api) streamCertificates(c *gin.Context) {
	ctx := c.Request.Context()
	feed, err := a.Certificates.Subscribe(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			for range feed {
			}
			return
		case f, ok := <-feed:
			if !ok {
				return
			}
			if f.Err != nil {
				a.log.Warn("certificate stream snapshot failed", zap.Error(f.Err))
				c.SSEvent("error", gin.H{"error": "lookup failed", "retryable": true})
			} else {
				c.SSEvent("certificates", f.Certificates)
			}
			c.Writer.Flush()
		}
	}
}

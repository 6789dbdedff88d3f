package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"printshop/internal/careers"
	"printshop/internal/csvexport"
	"printshop/internal/idgen"
)

// postingKind ties an id kind to its admin URL segment.
type postingKind struct {
	kind idgen.Kind
	path string
}

var (
	kindJob        = postingKind{kind: idgen.Job, path: "jobs"}
	kindInternship = postingKind{kind: idgen.Internship, path: "internships"}
)

// publicPostings lists only Active postings.
func (a *api) publicPostings(k postingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := a.Careers.ListPostings(c.Request.Context(), k.kind, true)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{k.path: posts})
	}
}

func (a *api) adminPostings(k postingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := a.Careers.ListPostings(c.Request.Context(), k.kind, false)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{k.path: posts})
	}
}

func (a *api) createPosting(k postingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in careers.PostingInput
		if !bind(c, &in) {
			return
		}
		p, err := a.Careers.CreatePosting(c.Request.Context(), k.kind, in)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func (a *api) updatePosting(k postingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch careers.PostingPatch
		if !bind(c, &patch) {
			return
		}
		p, err := a.Careers.UpdatePosting(c.Request.Context(), k.kind, c.Param("id"), patch)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func (a *api) deletePosting(k postingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Careers.DeletePosting(c.Request.Context(), k.kind, c.Param("id")); err != nil {
			a.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (a *api) exportPostings(k postingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := a.Careers.ListPostings(c.Request.Context(), k.kind, false)
		if err != nil {
			a.fail(c, err)
			return
		}
		a.sendCSV(c, k.path+".csv", csvexport.Rows(posts))
	}
}

func (a *api) apply(c *gin.Context) {
	var in careers.ApplicationInput
	if !bind(c, &in) {
		return
	}
	app, err := a.Careers.Apply(c.Request.Context(), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (a *api) listApplications(c *gin.Context) {
	apps, err := a.Careers.ListApplications(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (a *api) exportApplications(c *gin.Context) {
	apps, err := a.Careers.ListApplications(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.sendCSV(c, "applications.csv", csvexport.Rows(apps))
}

type statusBody struct {
	Status string `json:"status" binding:"required"`
}

func (a *api) setApplicationStatus(c *gin.Context) {
	var body statusBody
	if !bind(c, &body) {
		return
	}
	err := a.Careers.SetApplicationStatus(c.Request.Context(), c.Param("id"), careers.ApplicationStatus(body.Status))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": body.Status})
}

func (a *api) subscribe(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if !bind(c, &body) {
		return
	}
	sub, created, err := a.Careers.Subscribe(c.Request.Context(), body.Email)
	if err != nil {
		a.fail(c, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"subscriber": sub, "alreadySubscribed": !created})
}

func (a *api) listSubscribers(c *gin.Context) {
	subs, err := a.Careers.ListSubscribers(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs})
}

func (a *api) exportSubscribers(c *gin.Context) {
	subs, err := a.Careers.ListSubscribers(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.sendCSV(c, "job-newsletter.csv", csvexport.Rows(subs))
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
)

func (co Controller) RegisterHealthzRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGet)
	r.GET("", co.GetHealthz)
}

// @Summary		Get health
// @Description	Returns the application health and, if not healthy, an error
// @Tags			General
// @Produce		json
// @Success		204
// @Failure		500	{object}	httpError
// @Router			/healthz [get]
func (co Controller) GetHealthz(c *gin.Context) {
	if err := co.Store.Ping(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"golang.org/x/exp/slices"
)

var platforms = []string{"android", "ios", "web"}

var errInvalidPlatform = errors.New("the platform must be one of android, ios or web")

// DeviceCreate registers a Firebase Cloud Messaging token.
type DeviceCreate struct {
	Token    string `json:"token" binding:"required" example:"fcm-registration-token"`
	Platform string `json:"platform" example:"ios"`
}

type DeviceResponse struct {
	Data models.DeviceToken `json:"data"`
}

func (co Controller) RegisterDeviceRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsPost)
	r.POST("", co.RegisterDevice)
}

// @Summary		Register device
// @Description	Stores the push token of a device of the user
// @Tags			Devices
// @Accept			json
// @Produce		json
// @Success		201	{object}	DeviceResponse
// @Failure		400	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Param			device		body		DeviceCreate	true	"Device"
// @Router			/v1/devices [post]
func (co Controller) RegisterDevice(c *gin.Context) {
	var body DeviceCreate
	if err := httputil.BindData(c, &body); err != nil {
		abort(c, err)
		return
	}

	if body.Platform != "" && !slices.Contains(platforms, body.Platform) {
		abort(c, errInvalidPlatform)
		return
	}

	device, err := co.Store.RegisterDevice(c.Request.Context(), userID(c), body.Token, body.Platform)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, DeviceResponse{Data: device})
}

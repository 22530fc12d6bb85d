package handler

import (
	"github.com/erp/printdispatch/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PrintRoutes creates the route group for print runs. mw runs before every
// print route, typically JWTAuth.
func PrintRoutes(h *PrintHandler, mw ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("prints", "/prints").Use(mw...)
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	return group
}

// DeviceRoutes creates the route group for the device and format catalogs
func DeviceRoutes(h *DeviceHandler, mw ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("catalog", "").Use(mw...)
	group.GET("/devices", h.ListDevices)
	group.GET("/formats", h.ListFormats)
	return group
}

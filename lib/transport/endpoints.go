package transport

import (
	"github.com/labstack/echo/v4"

	"github.com/acceptevm/acceptevm.go/controllers"
	"github.com/acceptevm/acceptevm.go/lib/service"
)

func RegisterEndpoints(svc *service.GatewayService, e *echo.Echo, strictRateLimitMiddleware echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	invoiceCtrl := controllers.NewInvoiceController(svc)
	// invoice creation mints a fresh keypair, so it gets the strict limit
	e.POST("/v1/invoices", invoiceCtrl.AddInvoice, strictRateLimitMiddleware, logMw)
	e.GET("/v1/invoices", invoiceCtrl.GetInvoices, logMw)
	e.GET("/v1/invoices/:id", invoiceCtrl.GetInvoice, logMw)
}

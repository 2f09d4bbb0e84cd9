package controllers

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/db/models"
	"github.com/acceptevm/acceptevm.go/lib/responses"
	"github.com/acceptevm/acceptevm.go/lib/service"
)

// InvoiceController : Invoice controller struct
type InvoiceController struct {
	svc *service.GatewayService
}

func NewInvoiceController(svc *service.GatewayService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type AddInvoiceRequestBody struct {
	// Amount in the asset's smallest unit, as a decimal string.
	Amount string `json:"amount"`
	// TokenAddress is empty for native-asset invoices.
	TokenAddress     string `json:"token_address"`
	Message          string `json:"message"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type InvoiceResponseBody struct {
	ID              string `json:"id"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
	TokenAddress    string `json:"token_address,omitempty"`
	Expires         int64  `json:"expires"`
	PaidAtTimestamp int64  `json:"paid_at_timestamp"`
}

// AddInvoice : Create a new invoice with a fresh deposit address.
// The private key never leaves the gateway; the response only carries
// the deposit address and the invoice metadata.
func (controller *InvoiceController) AddInvoice(c echo.Context) error {
	var body AddInvoiceRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load AddInvoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	amount, ok := new(big.Int).SetString(body.Amount, 10)
	if !ok || amount.Sign() <= 0 || body.ExpiresInSeconds <= 0 {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	method := models.Native()
	if body.TokenAddress != "" {
		method = models.Token(body.TokenAddress)
	}

	invoiceID, invoice, err := controller.svc.NewInvoice(c.Request().Context(), amount, method, []byte(body.Message), body.ExpiresInSeconds)
	if err != nil {
		c.Logger().Errorf("Failed to create invoice: %v", err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, invoiceView(invoiceID, invoice))
}

// GetInvoice : Fetch a single invoice by id.
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	invoiceID := c.Param("id")
	invoice, err := controller.svc.GetInvoice(c.Request().Context(), invoiceID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		}
		c.Logger().Errorf("Failed to fetch invoice: id %s error %v", invoiceID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, invoiceView(invoiceID, invoice))
}

// GetInvoices : Fetch all pending invoices in insertion order.
func (controller *InvoiceController) GetInvoices(c echo.Context) error {
	entries, err := controller.svc.GetAllInvoices(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to fetch invoices: %v", err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	response := make([]InvoiceResponseBody, 0, len(entries))
	for _, entry := range entries {
		response = append(response, invoiceView(entry.Key, entry.Invoice))
	}
	return c.JSON(http.StatusOK, response)
}

func invoiceView(invoiceID string, invoice models.Invoice) InvoiceResponseBody {
	return InvoiceResponseBody{
		ID:              invoiceID,
		To:              invoice.To,
		Amount:          invoice.Amount.String(),
		TokenAddress:    invoice.Method.TokenAddress,
		Expires:         invoice.Expires,
		PaidAtTimestamp: invoice.PaidAtTimestamp,
	}
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/service"
)

type CustomersHandler struct {
	service *service.CustomerService
}

func NewCustomersHandler(customers *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customers}
}

// List GET /api/customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	customers, err := h.service.ListCustomers(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, customers)
}

// Create POST /api/customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	var input service.CustomerInput
	if err := decode(c, &input); err != nil {
		return err
	}
	customer, err := h.service.CreateCustomer(c.UserContext(), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, customer)
}

// Get GET /api/customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	customer, err := h.service.GetCustomer(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, customer)
}

// Update PUT /api/customers/:id.
func (h *CustomersHandler) Update(c *fiber.Ctx) error {
	var input service.CustomerInput
	if err := decode(c, &input); err != nil {
		return err
	}
	customer, err := h.service.UpdateCustomer(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, customer)
}

// Delete DELETE /api/customers/:id.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteCustomer(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

package zoho_books

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"zohobooks-mcp/server/internal/apperrors"
	"zohobooks-mcp/server/internal/modules"
	"zohobooks-mcp/server/pkg/zohobooksapi"
)

const (
	moduleName        = "zoho_books"
	apiVersion        = "v3"
	moduleDescription = "Zoho Books API - Invoices, customers, expenses, employees and chart of accounts"
)

// ZohoBooksModule implements the Module interface for the Zoho Books API.
// Every handler runs against the session built at startup.
type ZohoBooksModule struct {
	session  *zohobooksapi.Session
	handlers map[string]toolHandler
}

// New creates a module bound to session.
func New(session *zohobooksapi.Session) *ZohoBooksModule {
	m := &ZohoBooksModule{session: session}
	m.handlers = map[string]toolHandler{
		// Invoices
		"zoho_create_invoice":          typed(m.createInvoice),
		"zoho_get_invoice":             typed(m.getInvoice),
		"zoho_list_invoices":           typed(m.listInvoices),
		"zoho_list_invoice_payments":   typed(m.listInvoicePayments),
		"zoho_get_invoice_email":       typed(m.getInvoiceEmail),
		"zoho_list_recurring_invoices": typed(m.listRecurringInvoices),
		"zoho_list_credits_applied":    typed(m.listCreditsApplied),
		"zoho_generate_payment_link":   typed(m.generatePaymentLink),
		// Contacts
		"zoho_list_customer_names": typed(m.listCustomerNames),
		"zoho_list_contacts":       typed(m.listContacts),
		"zoho_create_customer":     typed(m.createCustomer),
		// Expenses & Employees
		"zoho_get_expenses":   typed(m.getExpenses),
		"zoho_get_an_expense": typed(m.getExpense),
		"zoho_list_employees": typed(m.listEmployees),
		"zoho_get_employee":   typed(m.getEmployee),
		// Accounts
		"zoho_get_chart_of_accounts": typed(m.getChartOfAccounts),
	}
	return m
}

// Name returns the module name
func (m *ZohoBooksModule) Name() string {
	return moduleName
}

// Description returns the module description
func (m *ZohoBooksModule) Description() string {
	return moduleDescription
}

// APIVersion returns the Zoho Books API version
func (m *ZohoBooksModule) APIVersion() string {
	return apiVersion
}

// Tools returns all available tools
func (m *ZohoBooksModule) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name and returns the JSON response text.
func (m *ZohoBooksModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := m.handlers[name]
	if !ok {
		return "", &apperrors.UnknownToolError{Name: name}
	}
	res, err := handler(ctx, params)
	if err != nil {
		return "", err
	}
	return modules.ToJSON(res)
}

// Resources returns the static help resources
func (m *ZohoBooksModule) Resources() []modules.Resource {
	out := make([]modules.Resource, len(resourceDefinitions))
	for i, r := range resourceDefinitions {
		out[i] = r.Resource
	}
	return out
}

// ReadResource returns the content of a static resource.
func (m *ZohoBooksModule) ReadResource(ctx context.Context, uri string) (string, error) {
	for _, r := range resourceDefinitions {
		if r.URI == uri {
			return r.Content, nil
		}
	}
	return "", &apperrors.NotFoundError{Message: "Resource not found: " + uri}
}

// =============================================================================
// Typed handlers
// =============================================================================

type toolHandler func(ctx context.Context, params map[string]any) (any, error)

// typed decodes validated params into A before calling fn.
func typed[A any](fn func(ctx context.Context, args A) (any, error)) toolHandler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		var args A
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
}

func decodeArgs(params map[string]any, dst any) error {
	if len(params) == 0 {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encode arguments")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return errors.Wrap(err, "decode arguments")
	}
	return nil
}

package zoho_books

import (
	"context"

	"zohobooks-mcp/server/pkg/zohobooksapi"
)

type noArgs struct{}

type invoiceArgs struct {
	InvoiceID string `json:"invoice_id"`
}

type queryArgs struct {
	Params map[string]any `json:"params"`
}

type paymentLinkArgs struct {
	TransactionID   string `json:"transaction_id"`
	TransactionType string `json:"transaction_type"`
	LinkType        string `json:"link_type"`
	ExpiryTime      string `json:"expiry_time"`
}

type expensesArgs struct {
	FilterBy   string `json:"filter_by"`
	SortColumn string `json:"sort_column"`
	CustomerID string `json:"customer_id"`
}

type expenseArgs struct {
	ExpenseID string `json:"expense_id"`
}

type employeeArgs struct {
	EmployeeID string `json:"employee_id"`
}

// =============================================================================
// Invoices
// =============================================================================

// createInvoice sends every argument as the invoice body.
func (m *ZohoBooksModule) createInvoice(ctx context.Context, args map[string]any) (any, error) {
	return m.session.CreateInvoice(ctx, args)
}

func (m *ZohoBooksModule) getInvoice(ctx context.Context, args invoiceArgs) (any, error) {
	return m.session.GetInvoice(ctx, args.InvoiceID)
}

func (m *ZohoBooksModule) listInvoices(ctx context.Context, args queryArgs) (any, error) {
	return m.session.ListInvoices(ctx, args.Params)
}

func (m *ZohoBooksModule) listInvoicePayments(ctx context.Context, args invoiceArgs) (any, error) {
	return m.session.ListInvoicePayments(ctx, args.InvoiceID)
}

func (m *ZohoBooksModule) getInvoiceEmail(ctx context.Context, args invoiceArgs) (any, error) {
	return m.session.GetInvoiceEmail(ctx, args.InvoiceID)
}

func (m *ZohoBooksModule) listRecurringInvoices(ctx context.Context, _ noArgs) (any, error) {
	return m.session.ListRecurringInvoices(ctx)
}

func (m *ZohoBooksModule) listCreditsApplied(ctx context.Context, args invoiceArgs) (any, error) {
	return m.session.ListCreditsApplied(ctx, args.InvoiceID)
}

func (m *ZohoBooksModule) generatePaymentLink(ctx context.Context, args paymentLinkArgs) (any, error) {
	return m.session.GeneratePaymentLink(ctx, zohobooksapi.PaymentLinkRequest{
		TransactionID:   args.TransactionID,
		TransactionType: args.TransactionType,
		LinkType:        args.LinkType,
		ExpiryTime:      args.ExpiryTime,
	})
}

// =============================================================================
// Contacts
// =============================================================================

func (m *ZohoBooksModule) listCustomerNames(ctx context.Context, args queryArgs) (any, error) {
	raw, err := m.session.ListCustomerNames(ctx, args.Params)
	if err != nil {
		return nil, err
	}
	return projectCustomerNames(raw)
}

// listContacts always scopes to the session organization; a caller-supplied
// organization_id inside params is overridden.
func (m *ZohoBooksModule) listContacts(ctx context.Context, args queryArgs) (any, error) {
	return m.session.ListContacts(ctx, args.Params)
}

func (m *ZohoBooksModule) createCustomer(ctx context.Context, args map[string]any) (any, error) {
	contact := make(map[string]any, len(args)+1)
	for k, v := range args {
		contact[k] = v
	}
	if _, ok := contact["contact_type"]; !ok {
		contact["contact_type"] = "customer"
	}
	return m.session.CreateCustomer(ctx, contact)
}

// =============================================================================
// Expenses & Employees
// =============================================================================

func (m *ZohoBooksModule) getExpenses(ctx context.Context, args expensesArgs) (any, error) {
	return m.session.GetExpenses(ctx, zohobooksapi.ExpenseFilter{
		FilterBy:   args.FilterBy,
		SortColumn: args.SortColumn,
		CustomerID: args.CustomerID,
	})
}

func (m *ZohoBooksModule) getExpense(ctx context.Context, args expenseArgs) (any, error) {
	return m.session.GetExpense(ctx, args.ExpenseID)
}

func (m *ZohoBooksModule) listEmployees(ctx context.Context, _ noArgs) (any, error) {
	return m.session.ListEmployees(ctx)
}

func (m *ZohoBooksModule) getEmployee(ctx context.Context, args employeeArgs) (any, error) {
	return m.session.GetEmployee(ctx, args.EmployeeID)
}

// =============================================================================
// Accounts
// =============================================================================

func (m *ZohoBooksModule) getChartOfAccounts(ctx context.Context, _ noArgs) (any, error) {
	return m.session.GetChartOfAccounts(ctx)
}

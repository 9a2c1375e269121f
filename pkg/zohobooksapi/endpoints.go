package zohobooksapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-faster/jx"

	"zohobooks-mcp/server/internal/apperrors"
)

// =============================================================================
// Invoices
// =============================================================================

// CreateInvoice posts data as the invoice body.
func (s *Session) CreateInvoice(ctx context.Context, data map[string]any) (jx.Raw, error) {
	return s.do(ctx, "CreateInvoice", http.MethodPost, "/invoices", nil, data)
}

func (s *Session) GetInvoice(ctx context.Context, invoiceID string) (jx.Raw, error) {
	return s.do(ctx, "GetInvoice", http.MethodGet, "/invoices/"+url.PathEscape(invoiceID), nil, nil)
}

// GetInvoiceEmail returns the payment reminder email content for an invoice.
func (s *Session) GetInvoiceEmail(ctx context.Context, invoiceID string) (jx.Raw, error) {
	return s.do(ctx, "GetInvoiceEmail", http.MethodGet, "/invoices/"+url.PathEscape(invoiceID)+"/email", nil, nil)
}

func (s *Session) ListInvoicePayments(ctx context.Context, invoiceID string) (jx.Raw, error) {
	return s.do(ctx, "ListInvoicePayments", http.MethodGet, "/invoices/"+url.PathEscape(invoiceID)+"/payments", nil, nil)
}

func (s *Session) ListCreditsApplied(ctx context.Context, invoiceID string) (jx.Raw, error) {
	return s.do(ctx, "ListCreditsApplied", http.MethodGet, "/invoices/"+url.PathEscape(invoiceID)+"/creditsapplied", nil, nil)
}

// ListInvoices merges params into the query string.
func (s *Session) ListInvoices(ctx context.Context, params map[string]any) (jx.Raw, error) {
	return s.do(ctx, "ListInvoices", http.MethodGet, "/invoices", queryFromParams(params), nil)
}

func (s *Session) ListRecurringInvoices(ctx context.Context) (jx.Raw, error) {
	return s.do(ctx, "ListRecurringInvoices", http.MethodGet, "/recurringinvoices", nil, nil)
}

// DefaultLinkType is sent when a payment link request leaves LinkType empty.
const DefaultLinkType = "public"

// PaymentLinkRequest describes a shareable payment link.
type PaymentLinkRequest struct {
	TransactionID   string
	TransactionType string // invoice, customer_payment, creditnote, vendorcredit
	LinkType        string // public (default) or protected
	ExpiryTime      string // YYYY-MM-DD
}

func (s *Session) GeneratePaymentLink(ctx context.Context, req PaymentLinkRequest) (jx.Raw, error) {
	linkType := req.LinkType
	if linkType == "" {
		linkType = DefaultLinkType
	}
	q := url.Values{}
	q.Set("transaction_id", req.TransactionID)
	q.Set("transaction_type", req.TransactionType)
	q.Set("link_type", linkType)
	q.Set("expiry_time", req.ExpiryTime)
	return s.do(ctx, "GeneratePaymentLink", http.MethodGet, "/share/paymentlink", q, nil)
}

// =============================================================================
// Contacts
// =============================================================================

func (s *Session) ListContacts(ctx context.Context, params map[string]any) (jx.Raw, error) {
	return s.do(ctx, "ListContacts", http.MethodGet, "/contacts", queryFromParams(params), nil)
}

// ListCustomerNames fetches the same contact list; callers project it down
// to id/name pairs.
func (s *Session) ListCustomerNames(ctx context.Context, params map[string]any) (jx.Raw, error) {
	return s.do(ctx, "ListCustomerNames", http.MethodGet, "/contacts", queryFromParams(params), nil)
}

// CreateCustomer wraps contact in the {"contact": {...}} envelope.
func (s *Session) CreateCustomer(ctx context.Context, contact map[string]any) (jx.Raw, error) {
	return s.do(ctx, "CreateCustomer", http.MethodPost, "/contacts", nil, map[string]any{"contact": contact})
}

// =============================================================================
// Expenses & Employees
// =============================================================================

// ExpenseFilter narrows GET /expenses. Empty fields are omitted.
type ExpenseFilter struct {
	FilterBy   string
	SortColumn string
	CustomerID string
}

func (s *Session) GetExpenses(ctx context.Context, f ExpenseFilter) (jx.Raw, error) {
	q := url.Values{}
	if f.FilterBy != "" {
		q.Set("filter_by", f.FilterBy)
	}
	if f.SortColumn != "" {
		q.Set("sort_column", f.SortColumn)
	}
	if f.CustomerID != "" {
		q.Set("customer_id", f.CustomerID)
	}
	return s.do(ctx, "GetExpenses", http.MethodGet, "/expenses", q, nil)
}

func (s *Session) GetExpense(ctx context.Context, expenseID string) (jx.Raw, error) {
	return s.do(ctx, "GetExpense", http.MethodGet, "/expenses/"+url.PathEscape(expenseID), nil, nil)
}

func (s *Session) ListEmployees(ctx context.Context) (jx.Raw, error) {
	return s.do(ctx, "ListEmployees", http.MethodGet, "/employees", nil, nil)
}

// EmployeeResult mirrors the shape of Zoho's single-employee response.
type EmployeeResult struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Employee json.RawMessage `json:"employee"`
}

// GetEmployee has no dedicated endpoint: it lists employees and searches locally.
func (s *Session) GetEmployee(ctx context.Context, employeeID string) (*EmployeeResult, error) {
	raw, err := s.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	var page struct {
		Employees []json.RawMessage `json:"employees"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &apperrors.UpstreamError{Status: http.StatusOK, Message: "malformed employee list: " + err.Error()}
	}
	for _, emp := range page.Employees {
		var head struct {
			EmployeeID string `json:"employee_id"`
		}
		if json.Unmarshal(emp, &head) != nil {
			continue
		}
		if head.EmployeeID == employeeID {
			return &EmployeeResult{Code: 0, Message: "success", Employee: emp}, nil
		}
	}
	return nil, &apperrors.NotFoundError{Message: fmt.Sprintf("Employee %s not found", employeeID)}
}

// =============================================================================
// Accounts
// =============================================================================

func (s *Session) GetChartOfAccounts(ctx context.Context) (jx.Raw, error) {
	return s.do(ctx, "GetChartOfAccounts", http.MethodGet, "/chartofaccounts", nil, nil)
}

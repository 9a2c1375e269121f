package zohobooksapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"zohobooks-mcp/server/internal/apperrors"
)

type staticToken string

func (s staticToken) AuthHeader(context.Context) (string, error) {
	return "Zoho-oauthtoken " + string(s), nil
}

type failingToken struct{}

func (failingToken) AuthHeader(context.Context) (string, error) {
	return "", apperrors.NewAuthError("invalid_code", nil)
}

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   []byte
}

// fakeBooks records every request and replies with the configured body.
type fakeBooks struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	body     string
	routes   map[string]string // path -> body override
}

func (f *fakeBooks) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	status, reply := f.status, f.body
	if b, ok := f.routes[r.URL.Path]; ok {
		reply = b
	}
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, reply)
}

func (f *fakeBooks) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newSession(t *testing.T, f *fakeBooks) *Session {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewSession(NewClient(srv.URL+"/books/v3", srv.Client()), staticToken("tok"), "60040246657")
}

func TestEndpointsIssueOneRequestWithOrganization(t *testing.T) {
	tests := []struct {
		name       string
		call       func(ctx context.Context, s *Session) error
		wantMethod string
		wantPath   string
		wantQuery  map[string]string
	}{
		{"create invoice", func(ctx context.Context, s *Session) error {
			_, err := s.CreateInvoice(ctx, map[string]any{"customer_id": "c1"})
			return err
		}, "POST", "/books/v3/invoices", nil},
		{"get invoice", func(ctx context.Context, s *Session) error {
			_, err := s.GetInvoice(ctx, "inv-1")
			return err
		}, "GET", "/books/v3/invoices/inv-1", nil},
		{"get invoice email", func(ctx context.Context, s *Session) error {
			_, err := s.GetInvoiceEmail(ctx, "inv-1")
			return err
		}, "GET", "/books/v3/invoices/inv-1/email", nil},
		{"list invoice payments", func(ctx context.Context, s *Session) error {
			_, err := s.ListInvoicePayments(ctx, "inv-1")
			return err
		}, "GET", "/books/v3/invoices/inv-1/payments", nil},
		{"list credits applied", func(ctx context.Context, s *Session) error {
			_, err := s.ListCreditsApplied(ctx, "inv-1")
			return err
		}, "GET", "/books/v3/invoices/inv-1/creditsapplied", nil},
		{"list invoices with params", func(ctx context.Context, s *Session) error {
			_, err := s.ListInvoices(ctx, map[string]any{"status": "overdue", "page": float64(2)})
			return err
		}, "GET", "/books/v3/invoices", map[string]string{"status": "overdue", "page": "2"}},
		{"list recurring invoices", func(ctx context.Context, s *Session) error {
			_, err := s.ListRecurringInvoices(ctx)
			return err
		}, "GET", "/books/v3/recurringinvoices", nil},
		{"generate payment link default", func(ctx context.Context, s *Session) error {
			_, err := s.GeneratePaymentLink(ctx, PaymentLinkRequest{TransactionID: "inv-1", TransactionType: "invoice", ExpiryTime: "2026-12-31"})
			return err
		}, "GET", "/books/v3/share/paymentlink", map[string]string{
			"transaction_id": "inv-1", "transaction_type": "invoice", "link_type": "public", "expiry_time": "2026-12-31",
		}},
		{"generate payment link protected", func(ctx context.Context, s *Session) error {
			_, err := s.GeneratePaymentLink(ctx, PaymentLinkRequest{TransactionID: "inv-1", TransactionType: "invoice", LinkType: "protected", ExpiryTime: "2026-12-31"})
			return err
		}, "GET", "/books/v3/share/paymentlink", map[string]string{"link_type": "protected"}},
		{"list contacts", func(ctx context.Context, s *Session) error {
			_, err := s.ListContacts(ctx, map[string]any{"contact_type": "customer"})
			return err
		}, "GET", "/books/v3/contacts", map[string]string{"contact_type": "customer"}},
		{"list customer names", func(ctx context.Context, s *Session) error {
			_, err := s.ListCustomerNames(ctx, nil)
			return err
		}, "GET", "/books/v3/contacts", nil},
		{"create customer", func(ctx context.Context, s *Session) error {
			_, err := s.CreateCustomer(ctx, map[string]any{"contact_name": "Acme"})
			return err
		}, "POST", "/books/v3/contacts", nil},
		{"get expenses filtered", func(ctx context.Context, s *Session) error {
			_, err := s.GetExpenses(ctx, ExpenseFilter{FilterBy: "Status.Billable", SortColumn: "date"})
			return err
		}, "GET", "/books/v3/expenses", map[string]string{"filter_by": "Status.Billable", "sort_column": "date"}},
		{"get expense", func(ctx context.Context, s *Session) error {
			_, err := s.GetExpense(ctx, "exp-1")
			return err
		}, "GET", "/books/v3/expenses/exp-1", nil},
		{"list employees", func(ctx context.Context, s *Session) error {
			_, err := s.ListEmployees(ctx)
			return err
		}, "GET", "/books/v3/employees", nil},
		{"chart of accounts", func(ctx context.Context, s *Session) error {
			_, err := s.GetChartOfAccounts(ctx)
			return err
		}, "GET", "/books/v3/chartofaccounts", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBooks{body: `{"code":0,"message":"success"}`}
			s := newSession(t, f)

			if err := tt.call(context.Background(), s); err != nil {
				t.Fatalf("call: %v", err)
			}
			reqs := f.calls()
			if len(reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(reqs))
			}
			got := reqs[0]
			if got.Method != tt.wantMethod {
				t.Errorf("method = %s, want %s", got.Method, tt.wantMethod)
			}
			if got.Path != tt.wantPath {
				t.Errorf("path = %s, want %s", got.Path, tt.wantPath)
			}
			if org := got.Query.Get("organization_id"); org != "60040246657" {
				t.Errorf("organization_id = %q, want 60040246657", org)
			}
			if got.Auth != "Zoho-oauthtoken tok" {
				t.Errorf("Authorization = %q", got.Auth)
			}
			for k, v := range tt.wantQuery {
				if q := got.Query.Get(k); q != v {
					t.Errorf("query %s = %q, want %q", k, q, v)
				}
			}
		})
	}
}

func TestCreateCustomerWrapsContact(t *testing.T) {
	f := &fakeBooks{body: `{"code":0,"message":"The contact has been added.","contact":{"contact_id":"c-9"}}`}
	s := newSession(t, f)

	raw, err := s.CreateCustomer(context.Background(), map[string]any{"contact_name": "Acme", "email": "ap@acme.test"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if !json.Valid(raw) {
		t.Errorf("raw result is not JSON: %s", raw)
	}

	var body map[string]map[string]any
	if err := json.Unmarshal(f.calls()[0].Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["contact"]["contact_name"] != "Acme" || body["contact"]["email"] != "ap@acme.test" {
		t.Errorf("body = %v", body)
	}
}

func TestSessionOrganizationWinsOverParams(t *testing.T) {
	f := &fakeBooks{body: `{"code":0}`}
	s := newSession(t, f)

	if _, err := s.ListContacts(context.Background(), map[string]any{"organization_id": "999"}); err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if org := f.calls()[0].Query["organization_id"]; len(org) != 1 || org[0] != "60040246657" {
		t.Errorf("organization_id = %v, want [60040246657]", org)
	}
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{"not found with envelope", 404, `{"code":1002,"message":"Invoice does not exist."}`, 404, 1002, "Invoice does not exist."},
		{"unauthorized", 401, `{"code":57,"message":"You are not authorized to perform this operation"}`, 401, 57, "You are not authorized to perform this operation"},
		{"server error html", 502, `<html>oops</html>`, 502, 0, "Bad Gateway"},
		{"ok with error code", 200, `{"code":36,"message":"Organization does not exist"}`, 200, 36, "Organization does not exist"},
		{"ok with malformed body", 200, `{"code":0,`, 200, 0, "malformed response body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBooks{status: tt.status, body: tt.body}
			s := newSession(t, f)

			_, err := s.GetInvoice(context.Background(), "inv-1")
			up, ok := apperrors.AsUpstream(err)
			if !ok {
				t.Fatalf("error = %v (%T), want UpstreamError", err, err)
			}
			if up.Status != tt.wantStatus || up.Code != tt.wantCode || up.Message != tt.wantMsg {
				t.Errorf("got {%d %d %q}, want {%d %d %q}", up.Status, up.Code, up.Message, tt.wantStatus, tt.wantCode, tt.wantMsg)
			}
			if n := len(f.calls()); n != 1 {
				t.Errorf("requests = %d, want 1 (no retry)", n)
			}
		})
	}
}

func TestAuthFailureSkipsUpstream(t *testing.T) {
	f := &fakeBooks{body: `{"code":0}`}
	srv := httptest.NewServer(f)
	defer srv.Close()
	s := NewSession(NewClient(srv.URL, srv.Client()), failingToken{}, "1")

	_, err := s.ListEmployees(context.Background())
	if !apperrors.IsAuth(err) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if n := len(f.calls()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestGetEmployee(t *testing.T) {
	list := `{"code":0,"message":"success","employees":[
		{"employee_id":"e1","name":"Asha","email":"asha@example.com"},
		{"employee_id":"e2","name":"Ravi","email":"ravi@example.com"}
	]}`

	t.Run("found", func(t *testing.T) {
		f := &fakeBooks{body: list}
		s := newSession(t, f)

		res, err := s.GetEmployee(context.Background(), "e2")
		if err != nil {
			t.Fatalf("GetEmployee: %v", err)
		}
		if res.Code != 0 || res.Message != "success" {
			t.Errorf("envelope = %d %q", res.Code, res.Message)
		}
		var emp map[string]any
		if err := json.Unmarshal(res.Employee, &emp); err != nil {
			t.Fatalf("decode employee: %v", err)
		}
		if emp["name"] != "Ravi" {
			t.Errorf("employee = %v, want Ravi", emp)
		}
		if n := len(f.calls()); n != 1 {
			t.Errorf("requests = %d, want 1", n)
		}
	})

	t.Run("not found", func(t *testing.T) {
		f := &fakeBooks{body: list}
		s := newSession(t, f)

		_, err := s.GetEmployee(context.Background(), "e404")
		if !apperrors.IsNotFound(err) {
			t.Fatalf("error = %v, want NotFoundError", err)
		}
		if err.Error() != "Employee e404 not found" {
			t.Errorf("message = %q", err.Error())
		}
		if n := len(f.calls()); n != 1 {
			t.Errorf("requests = %d, want exactly 1", n)
		}
	})
}

func TestOpenSelectsFirstOrganization(t *testing.T) {
	f := &fakeBooks{routes: map[string]string{
		"/organizations": `{"code":0,"organizations":[{"organization_id":"111","name":"First"},{"organization_id":"222","name":"Second"}]}`,
	}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	s, err := Open(context.Background(), NewClient(srv.URL, srv.Client()), staticToken("tok"), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.OrganizationID != "111" {
		t.Errorf("OrganizationID = %q, want 111", s.OrganizationID)
	}
	reqs := f.calls()
	if len(reqs) != 1 || reqs[0].Query.Has("organization_id") {
		t.Errorf("organizations lookup should be a single call without organization_id, got %+v", reqs)
	}
}

func TestOpenFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"empty list", 200, `{"code":0,"organizations":[]}`, apperrors.IsNotFound},
		{"upstream rejects", 401, `{"code":14,"message":"Invalid OAuth token"}`, func(err error) bool {
			_, ok := apperrors.AsUpstream(err)
			return ok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBooks{status: tt.status, body: tt.body}
			srv := httptest.NewServer(f)
			defer srv.Close()

			_, err := Open(context.Background(), NewClient(srv.URL, srv.Client()), staticToken("tok"), "")
			if err == nil || !tt.check(err) {
				t.Errorf("Open error = %v", err)
			}
		})
	}
}

func TestOpenWithConfiguredOrganization(t *testing.T) {
	f := &fakeBooks{}
	srv := httptest.NewServer(f)
	defer srv.Close()

	s, err := Open(context.Background(), NewClient(srv.URL, srv.Client()), staticToken("tok"), "60040246657")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.OrganizationID != "60040246657" {
		t.Errorf("OrganizationID = %q", s.OrganizationID)
	}
	if n := len(f.calls()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestFormatParam(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{float64(25), "25"},
		{float64(2.5), "2.5"},
		{true, "true"},
		{7, "7"},
		{[]any{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			if got := formatParam(tt.in); got != tt.want {
				t.Errorf("formatParam(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

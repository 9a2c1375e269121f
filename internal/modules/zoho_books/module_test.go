package zoho_books

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"zohobooks-mcp/server/internal/modules"
	"zohobooks-mcp/server/pkg/zohobooksapi"
)

const testOrg = "60040246657"

type staticToken struct{}

func (staticToken) AuthHeader(context.Context) (string, error) {
	return "Zoho-oauthtoken test-token", nil
}

type upstreamCall struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

// fakeZoho answers every request with {"code":0} unless a route overrides it.
type fakeZoho struct {
	mu     sync.Mutex
	calls  []upstreamCall
	routes map[string]string
}

func (f *fakeZoho) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{r.Method, r.URL.Path, r.URL.Query(), body})
	reply, ok := f.routes[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		reply = `{"code":0,"message":"success"}`
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, reply)
}

func (f *fakeZoho) recorded() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

func setup(t *testing.T, routes map[string]string) *fakeZoho {
	t.Helper()
	f := &fakeZoho{routes: routes}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	session := zohobooksapi.NewSession(zohobooksapi.NewClient(srv.URL, srv.Client()), staticToken{}, testOrg)
	modules.RegisterModule(New(session))
	return f
}

func call(t *testing.T, tool string, args map[string]any) string {
	t.Helper()
	res := modules.Run(context.Background(), tool, args)
	if res.IsError {
		t.Errorf("%s: isError set; business errors must be data", tool)
	}
	if len(res.Content) != 1 || res.Content[0].Type != "text" {
		t.Fatalf("%s: content = %+v, want one text block", tool, res.Content)
	}
	return res.Content[0].Text
}

func errorOf(text string) string {
	var payload map[string]any
	if json.Unmarshal([]byte(text), &payload) != nil {
		return ""
	}
	msg, _ := payload["error"].(string)
	return msg
}

func validArgs() map[string]map[string]any {
	return map[string]map[string]any{
		"zoho_create_invoice": {
			"customer_id": "c1",
			"line_items":  []any{map[string]any{"item_id": "i1", "quantity": float64(2)}},
		},
		"zoho_get_invoice":             {"invoice_id": "inv-1"},
		"zoho_list_invoices":           {"params": map[string]any{"status": "unpaid"}},
		"zoho_list_invoice_payments":   {"invoice_id": "inv-1"},
		"zoho_get_invoice_email":       {"invoice_id": "inv-1"},
		"zoho_list_recurring_invoices": {},
		"zoho_list_credits_applied":    {"invoice_id": "inv-1"},
		"zoho_generate_payment_link": {
			"transaction_id": "inv-1", "transaction_type": "invoice", "expiry_time": "2026-12-31",
		},
		"zoho_list_customer_names":   {},
		"zoho_list_contacts":         {"params": map[string]any{"page": float64(1)}},
		"zoho_create_customer":       {"contact_name": "Acme"},
		"zoho_get_expenses":          {"filter_by": "Status.All"},
		"zoho_get_an_expense":        {"expense_id": "exp-1"},
		"zoho_list_employees":        {},
		"zoho_get_employee":          {"employee_id": "e1"},
		"zoho_get_chart_of_accounts": {},
	}
}

func TestToolDefinitions(t *testing.T) {
	m := New(nil)
	tools := m.Tools()
	if len(tools) != 16 {
		t.Fatalf("len(Tools()) = %d, want 16", len(tools))
	}
	seen := make(map[string]bool)
	for _, tool := range tools {
		if seen[tool.Name] {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		seen[tool.Name] = true
		if _, ok := m.handlers[tool.Name]; !ok {
			t.Errorf("tool %s has no handler", tool.Name)
		}
		if tool.Description == "" || tool.Annotations == nil {
			t.Errorf("tool %s lacks description or annotations", tool.Name)
		}
		for _, req := range tool.InputSchema.Required {
			if _, ok := tool.InputSchema.Properties[req]; !ok {
				t.Errorf("tool %s requires undeclared %s", tool.Name, req)
			}
		}
	}
	if len(m.handlers) != len(tools) {
		t.Errorf("handlers = %d, tools = %d", len(m.handlers), len(tools))
	}
}

func TestEveryToolMakesOneScopedCall(t *testing.T) {
	employees := `{"code":0,"employees":[{"employee_id":"e1","name":"Asha"}]}`
	wantPaths := map[string]string{
		"zoho_create_invoice":          "POST /invoices",
		"zoho_get_invoice":             "GET /invoices/inv-1",
		"zoho_list_invoices":           "GET /invoices",
		"zoho_list_invoice_payments":   "GET /invoices/inv-1/payments",
		"zoho_get_invoice_email":       "GET /invoices/inv-1/email",
		"zoho_list_recurring_invoices": "GET /recurringinvoices",
		"zoho_list_credits_applied":    "GET /invoices/inv-1/creditsapplied",
		"zoho_generate_payment_link":   "GET /share/paymentlink",
		"zoho_list_customer_names":     "GET /contacts",
		"zoho_list_contacts":           "GET /contacts",
		"zoho_create_customer":         "POST /contacts",
		"zoho_get_expenses":            "GET /expenses",
		"zoho_get_an_expense":          "GET /expenses/exp-1",
		"zoho_list_employees":          "GET /employees",
		"zoho_get_employee":            "GET /employees",
		"zoho_get_chart_of_accounts":   "GET /chartofaccounts",
	}

	for tool, args := range validArgs() {
		t.Run(tool, func(t *testing.T) {
			f := setup(t, map[string]string{"/employees": employees})

			text := call(t, tool, args)
			if msg := errorOf(text); msg != "" {
				t.Fatalf("unexpected error payload: %s", msg)
			}
			calls := f.recorded()
			if len(calls) != 1 {
				t.Fatalf("upstream calls = %d, want 1", len(calls))
			}
			if got := calls[0].method + " " + calls[0].path; got != wantPaths[tool] {
				t.Errorf("request = %q, want %q", got, wantPaths[tool])
			}
			if org := calls[0].query.Get("organization_id"); org != testOrg {
				t.Errorf("organization_id = %q, want %q", org, testOrg)
			}
		})
	}
}

func TestMissingRequiredArgument(t *testing.T) {
	for _, tool := range New(nil).Tools() {
		for _, req := range tool.InputSchema.Required {
			t.Run(tool.Name+"/"+req, func(t *testing.T) {
				f := setup(t, nil)
				args := make(map[string]any)
				for k, v := range validArgs()[tool.Name] {
					args[k] = v
				}
				delete(args, req)

				text := call(t, tool.Name, args)
				if got, want := errorOf(text), "Missing required argument: "+req; got != want {
					t.Errorf("error = %q, want %q", got, want)
				}
				if n := len(f.recorded()); n != 0 {
					t.Errorf("upstream calls = %d, want 0", n)
				}
			})
		}
	}
}

func TestUnknownTool(t *testing.T) {
	f := setup(t, nil)

	text := call(t, "zoho_delete_everything", map[string]any{})
	if text != `{"error":"Unknown tool: zoho_delete_everything"}` {
		t.Errorf("text = %s", text)
	}
	if n := len(f.recorded()); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestInvalidEnumMakesNoCall(t *testing.T) {
	f := setup(t, nil)

	args := validArgs()["zoho_generate_payment_link"]
	args["link_type"] = "secret"
	text := call(t, "zoho_generate_payment_link", args)
	if msg := errorOf(text); !strings.HasPrefix(msg, "Invalid argument link_type") {
		t.Errorf("error = %q", msg)
	}
	if n := len(f.recorded()); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestLooseArgumentsAreAccepted(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		args      map[string]any
		wantPath  string
		wantQuery map[string]string
	}{
		{
			name:      "empty filter_by is not sent",
			tool:      "zoho_get_expenses",
			args:      map[string]any{"filter_by": "", "sort_column": ""},
			wantPath:  "/expenses",
			wantQuery: map[string]string{"filter_by": "", "sort_column": ""},
		},
		{
			name:     "numeric invoice_id",
			tool:     "zoho_get_invoice",
			args:     map[string]any{"invoice_id": float64(12345)},
			wantPath: "/invoices/12345",
		},
		{
			name:     "numeric expense_id",
			tool:     "zoho_get_an_expense",
			args:     map[string]any{"expense_id": float64(777)},
			wantPath: "/expenses/777",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)

			text := call(t, tt.tool, tt.args)
			if msg := errorOf(text); msg != "" {
				t.Fatalf("error = %q", msg)
			}
			calls := f.recorded()
			if len(calls) != 1 {
				t.Fatalf("upstream calls = %d, want 1", len(calls))
			}
			if calls[0].path != tt.wantPath {
				t.Errorf("path = %q, want %q", calls[0].path, tt.wantPath)
			}
			for k, want := range tt.wantQuery {
				if want == "" {
					if calls[0].query.Has(k) {
						t.Errorf("%s should not be sent, got %q", k, calls[0].query.Get(k))
					}
					continue
				}
				if got := calls[0].query.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestGetEmployee(t *testing.T) {
	employees := `{"code":0,"message":"success","employees":[
		{"employee_id":"e1","name":"Asha"},
		{"employee_id":"e2","name":"Ravi"}
	]}`

	t.Run("found", func(t *testing.T) {
		setup(t, map[string]string{"/employees": employees})

		text := call(t, "zoho_get_employee", map[string]any{"employee_id": "e2"})
		var got struct {
			Code     int            `json:"code"`
			Message  string         `json:"message"`
			Employee map[string]any `json:"employee"`
		}
		if err := json.Unmarshal([]byte(text), &got); err != nil {
			t.Fatalf("decode %s: %v", text, err)
		}
		if got.Code != 0 || got.Message != "success" || got.Employee["name"] != "Ravi" {
			t.Errorf("result = %+v", got)
		}
	})

	t.Run("missing id makes one call", func(t *testing.T) {
		f := setup(t, map[string]string{"/employees": employees})

		text := call(t, "zoho_get_employee", map[string]any{"employee_id": "e9"})
		if got := errorOf(text); got != "Employee e9 not found" {
			t.Errorf("error = %q", got)
		}
		if n := len(f.recorded()); n != 1 {
			t.Errorf("upstream calls = %d, want 1", n)
		}
	})
}

func TestListCustomerNamesProjection(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []CustomerName
	}{
		{
			"preserves order",
			`{"code":0,"contacts":[
				{"contact_id":"3","contact_name":"Zeta","email":"z@x"},
				{"contact_id":"1","contact_name":"Alpha","company_name":"A Ltd"},
				{"contact_id":2,"contact_name":"Mid"}
			],"page_context":{"page":1}}`,
			[]CustomerName{{"3", "Zeta"}, {"1", "Alpha"}, {"2", "Mid"}},
		},
		{"no contacts", `{"code":0,"message":"success"}`, []CustomerName{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup(t, map[string]string{"/contacts": tt.reply})

			text := call(t, "zoho_list_customer_names", nil)
			var got []CustomerName
			if err := json.Unmarshal([]byte(text), &got); err != nil {
				t.Fatalf("decode %s: %v", text, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%s)", len(got), len(tt.want), text)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPaymentLinkDefaultsToPublic(t *testing.T) {
	tests := []struct {
		name     string
		linkType any
		want     string
	}{
		{"omitted", nil, "public"},
		{"empty", "", "public"},
		{"protected", "protected", "protected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)

			args := validArgs()["zoho_generate_payment_link"]
			if tt.linkType != nil {
				args["link_type"] = tt.linkType
			}
			text := call(t, "zoho_generate_payment_link", args)
			if msg := errorOf(text); msg != "" {
				t.Fatalf("error = %q", msg)
			}
			q := f.recorded()[0].query
			if got := q.Get("link_type"); got != tt.want {
				t.Errorf("link_type = %q, want %q", got, tt.want)
			}
			if got := q.Get("expiry_time"); got != "2026-12-31" {
				t.Errorf("expiry_time = %q", got)
			}
		})
	}
}

func TestCreateCustomerBody(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		wantType string
	}{
		{"defaults to customer", map[string]any{"contact_name": "Acme"}, "customer"},
		{"keeps vendor", map[string]any{"contact_name": "Supplier", "contact_type": "vendor"}, "vendor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)

			call(t, "zoho_create_customer", tt.args)
			var body struct {
				Contact map[string]any `json:"contact"`
			}
			if err := json.Unmarshal(f.recorded()[0].body, &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Contact["contact_name"] != tt.args["contact_name"] {
				t.Errorf("contact_name = %v", body.Contact["contact_name"])
			}
			if body.Contact["contact_type"] != tt.wantType {
				t.Errorf("contact_type = %v, want %s", body.Contact["contact_type"], tt.wantType)
			}
		})
	}
}

func TestCreateInvoiceSendsAllArguments(t *testing.T) {
	f := setup(t, nil)

	args := validArgs()["zoho_create_invoice"]
	args["reference_number"] = "PO-7"
	call(t, "zoho_create_invoice", args)

	var body map[string]any
	if err := json.Unmarshal(f.recorded()[0].body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["customer_id"] != "c1" || body["reference_number"] != "PO-7" {
		t.Errorf("body = %v", body)
	}
	if items, ok := body["line_items"].([]any); !ok || len(items) != 1 {
		t.Errorf("line_items = %v", body["line_items"])
	}
}

func TestListContactsIgnoresCallerOrganization(t *testing.T) {
	f := setup(t, nil)

	call(t, "zoho_list_contacts", map[string]any{"params": map[string]any{"organization_id": "1"}})
	if org := f.recorded()[0].query["organization_id"]; len(org) != 1 || org[0] != testOrg {
		t.Errorf("organization_id = %v, want [%s]", org, testOrg)
	}
}

func TestUpstreamFailureIsData(t *testing.T) {
	setup(t, map[string]string{"/invoices/inv-1": `{"code":1002,"message":"Invoice does not exist."}`})

	text := call(t, "zoho_get_invoice", map[string]any{"invoice_id": "inv-1"})
	if got := errorOf(text); !strings.Contains(got, "Invoice does not exist.") {
		t.Errorf("error = %q", got)
	}
}

func TestResources(t *testing.T) {
	m := New(nil)

	res := m.Resources()
	if len(res) != 1 || res[0].URI != helpURI || res[0].MimeType != "text/markdown" {
		t.Fatalf("Resources() = %+v", res)
	}
	content, err := m.ReadResource(context.Background(), helpURI)
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	for _, tool := range m.Tools() {
		if !strings.Contains(content, tool.Name) {
			t.Errorf("help does not mention %s", tool.Name)
		}
	}
	if _, err := m.ReadResource(context.Background(), "resource://zoho_books/nope"); err == nil {
		t.Error("expected error for unknown resource")
	}
}

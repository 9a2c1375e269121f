package zoho_books

import "zohobooks-mcp/server/internal/modules"

var noParamsSchema = modules.InputSchema{
	Type:       "object",
	Properties: map[string]modules.Property{},
}

func invoiceIDSchema(desc string) modules.InputSchema {
	return modules.InputSchema{
		Type: "object",
		Properties: map[string]modules.Property{
			"invoice_id": {Type: "string", Description: desc},
		},
		Required: []string{"invoice_id"},
	}
}

// =============================================================================
// Tool Definitions
// =============================================================================

var toolDefinitions = []modules.Tool{
	// Invoices
	{
		Name:        "zoho_create_invoice",
		Description: "Create a new invoice in Zoho Books (organization_id is fixed)",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"customer_id": {Type: "string", Description: "ID of the customer the invoice is for"},
				"line_items": {
					Type:        "array",
					Description: "Array of line item objects for the invoice",
					Items:       &modules.Property{Type: "object"},
				},
			},
			Required: []string{"customer_id", "line_items"},
		},
	},
	{
		Name:        "zoho_get_invoice",
		Description: "Get details of a specific invoice (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: invoiceIDSchema("Invoice ID"),
	},
	{
		Name:        "zoho_list_invoices",
		Description: "List invoices in Zoho Books (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"params": {Type: "object", Description: "Query parameters (optional)"},
			},
		},
	},
	{
		Name:        "zoho_list_invoice_payments",
		Description: "List all payments made against a specific invoice (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: invoiceIDSchema("Invoice ID for which to retrieve payments"),
	},
	{
		Name:        "zoho_get_invoice_email",
		Description: "Get payment reminder email content for a specific invoice (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: invoiceIDSchema("ID of the invoice to fetch email content for"),
	},
	{
		Name:        "zoho_list_recurring_invoices",
		Description: "List all recurring invoices (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: noParamsSchema,
	},
	{
		Name:        "zoho_list_credits_applied",
		Description: "Get a list of credits applied to a specific invoice (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: invoiceIDSchema("Invoice ID for which to retrieve applied credits"),
	},
	{
		Name:        "zoho_generate_payment_link",
		Description: "Generate a payment link for a specific invoice (organization_id is fixed)",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"transaction_id": {Type: "string", Description: "Transaction ID (e.g., invoice ID)"},
				"transaction_type": {
					Type:        "string",
					Description: "Type of transaction",
					Enum:        []string{"invoice", "customer_payment", "creditnote", "vendorcredit"},
				},
				"link_type": {
					Type:        "string",
					Description: "Type of link",
					Enum:        []string{"public", "protected"},
					Default:     "public",
				},
				"expiry_time": {
					Type:        "string",
					Description: "Expiry date for the payment link (format: YYYY-MM-DD)",
					Pattern:     `^\d{4}-\d{2}-\d{2}$`,
				},
			},
			Required: []string{"transaction_id", "transaction_type", "expiry_time"},
		},
	},
	// Contacts
	{
		Name:        "zoho_list_customer_names",
		Description: "List all customer names and IDs in Zoho Books (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"params": {Type: "object", Description: "Optional query parameters for listing customers"},
			},
		},
	},
	{
		Name:        "zoho_list_contacts",
		Description: "Lists all contacts (customers) given the organization_id.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"params": {Type: "object", Description: "Optional query parameters for listing contacts."},
			},
		},
	},
	{
		Name:        "zoho_create_customer",
		Description: "Create a new customer contact in Zoho Books",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"contact_name":  {Type: "string", Description: "Name of the customer (required)"},
				"company_name":  {Type: "string", Description: "Company name"},
				"customer_name": {Type: "string", Description: "Alternative name field (if needed)"},
				"email":         {Type: "string", Description: "Customer's email address"},
				"phone":         {Type: "string", Description: "Customer's phone number"},
				"billing_address": {
					Type:        "object",
					Description: "Customer's billing address",
					Properties: map[string]modules.Property{
						"address": {Type: "string", Description: "Street address"},
						"city":    {Type: "string", Description: "City"},
						"state":   {Type: "string", Description: "State"},
						"zip":     {Type: "string", Description: "Zip/Postal code"},
						"country": {Type: "string", Description: "Country"},
					},
				},
				"contact_type": {
					Type:        "string",
					Description: "Type of contact",
					Enum:        []string{"customer", "vendor"},
					Default:     "customer",
				},
				"currency_id": {Type: "string", Description: "Currency ID for this customer"},
				"notes":       {Type: "string", Description: "Additional notes about the customer"},
			},
			Required: []string{"contact_name"},
		},
	},
	// Expenses & Employees
	{
		Name:        "zoho_get_expenses",
		Description: "Get a list of all expenses (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"filter_by": {
					Type:        "string",
					Description: "Filter expenses by status (e.g., 'Status.All', 'Status.Billable', 'Status.Nonbillable')",
					Enum: []string{
						"Status.All", "Status.Billable", "Status.Nonbillable",
						"Status.Reimbursed", "Status.Invoiced", "Status.Unbilled",
					},
				},
				"sort_column": {
					Type:        "string",
					Description: "Column to sort results by",
					Enum: []string{
						"date", "account_name", "total", "bcy_total",
						"reference_number", "customer_name", "created_time",
					},
				},
				"customer_id": {Type: "string", Description: "Filter expenses by customer ID"},
			},
		},
	},
	{
		Name:        "zoho_get_an_expense",
		Description: "Get details of a specific expense (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"expense_id": {Type: "string", Description: "Expense ID"},
			},
			Required: []string{"expense_id"},
		},
	},
	{
		Name:        "zoho_list_employees",
		Description: "List all employees in the organization (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: noParamsSchema,
	},
	{
		Name:        "zoho_get_employee",
		Description: "Get a specific employee's details by employee_id (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"employee_id": {Type: "string", Description: "ID of the employee to fetch"},
			},
			Required: []string{"employee_id"},
		},
	},
	// Accounts
	{
		Name:        "zoho_get_chart_of_accounts",
		Description: "Get list of chart of accounts (organization_id is fixed)",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: noParamsSchema,
	},
}

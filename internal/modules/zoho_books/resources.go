package zoho_books

import "zohobooks-mcp/server/internal/modules"

type staticResource struct {
	modules.Resource
	Content string
}

const helpURI = "resource://zoho_books/help"

var resourceDefinitions = []staticResource{
	{
		Resource: modules.Resource{
			URI:         helpURI,
			Name:        "Zoho Books MCP Help",
			Description: "Help and usage instructions for Zoho Books MCP server.",
			MimeType:    "text/markdown",
		},
		Content: helpContent,
	},
}

const helpContent = `# Zoho Books MCP Server Help

## Tools Available

### Invoices
- zoho_create_invoice: Create an invoice (customer_id, line_items)
- zoho_get_invoice: Get an invoice by invoice_id
- zoho_list_invoices: List invoices (optional params)
- zoho_list_invoice_payments: Payments made against an invoice
- zoho_get_invoice_email: Payment reminder email content for an invoice
- zoho_list_recurring_invoices: List recurring invoices
- zoho_list_credits_applied: Credits applied to an invoice
- zoho_generate_payment_link: Shareable payment link (link_type defaults to public)

### Customers
- zoho_list_customer_names: Customer IDs and names only
- zoho_list_contacts: Full contact list (optional params)
- zoho_create_customer: Create a customer contact (contact_name)

### Expenses & Employees
- zoho_get_expenses: List expenses (filter_by, sort_column, customer_id)
- zoho_get_an_expense: Get an expense by expense_id
- zoho_list_employees: List employees
- zoho_get_employee: Get an employee by employee_id

### Accounts
- zoho_get_chart_of_accounts: Chart of accounts

## Usage
- Use the appropriate tool with the required parameters.
- The organization is selected once when the server starts; organization_id never needs to be passed.
- Errors are returned as {"error": "<message>"} in the tool result.
`

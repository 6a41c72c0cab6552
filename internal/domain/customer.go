package domain

// Customer is a company that reports issues. TotalIssues is a denormalized
// counter and may drift from the live issue count; reconciliation repairs it.
type Customer struct {
	Meta
	CompanyName string `json:"companyName"`
	TotalIssues int    `json:"totalIssues"`
}

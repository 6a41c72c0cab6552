package domain

// Comment belongs to one issue by IssueID. Comments outlive their issue.
type Comment struct {
	Meta
	IssueID     string   `json:"issueId"`
	UserID      string   `json:"userId"`
	UserName    string   `json:"userName"`
	Content     string   `json:"content"`
	IsInternal  bool     `json:"isInternal"`
	Attachments []string `json:"attachments,omitempty"`
}

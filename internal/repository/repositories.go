package repository

import "time"

// Repositories bundles the typed repositories over one Store.
type Repositories struct {
	Store         Store
	Organizations OrganizationRepository
	Users         UserRepository
	Customers     CustomerRepository
	Issues        IssueRepository
	Comments      CommentRepository
	Applications  ApplicationRepository
	Categories    CategoryRepository
	Activities    ActivityRepository
}

// NewRepositories wires every repository to store. A nil now uses time.Now.
func NewRepositories(store Store, now func() time.Time) *Repositories {
	return &Repositories{
		Store:         store,
		Organizations: NewOrganizationRepository(store, now),
		Users:         NewUserRepository(store, now),
		Customers:     NewCustomerRepository(store, now),
		Issues:        NewIssueRepository(store, now),
		Comments:      NewCommentRepository(store, now),
		Applications:  NewApplicationRepository(store, now),
		Categories:    NewCategoryRepository(store, now),
		Activities:    NewActivityRepository(store, now),
	}
}

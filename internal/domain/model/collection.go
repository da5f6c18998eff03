package model

import "time"

// Collection is a named group of companies.
type Collection struct {
	ID        string    `json:"id"             db:"id"`
	Name      string    `json:"collectionName" db:"collection_name"`
	CreatedAt time.Time `json:"createdAt"      db:"created_at"`
}

// LikedCollectionName names the collection whose members are reported as liked.
const LikedCollectionName = "Liked Companies List"

// Company is a member candidate. Company ids are positive integers.
// Liked is set on collection reads when the company also belongs to the liked collection.
type Company struct {
	ID        int64     `json:"id"          db:"id"`
	Name      string    `json:"companyName" db:"company_name"`
	CreatedAt time.Time `json:"createdAt"   db:"created_at"`
	Liked     bool      `json:"liked"       db:"liked"`
}

// Membership records a company's presence in a collection. The pair is unique.
type Membership struct {
	CollectionID string    `json:"collectionId" db:"collection_id"`
	CompanyID    int64     `json:"companyId"    db:"company_id"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
}

// MemberListOptions groups parameters for paging through a collection's companies.
type MemberListOptions struct {
	CollectionID string
	Limit        int
	Offset       int
}

// MemberPage is one page of a collection's companies plus the full member count.
type MemberPage struct {
	Collection Collection `json:"collection"`
	Companies  []Company  `json:"companies"`
	Total      int        `json:"total"`
}

// BatchResult reports the outcome of writing one batch into a target collection.
// Attempted counts every candidate in the batch, Inserted only the ones that were new.
type BatchResult struct {
	Attempted int `json:"attempted"`
	Inserted  int `json:"inserted"`
}

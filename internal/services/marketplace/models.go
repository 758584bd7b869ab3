// Package marketplace provides the client for the marketplace core
// service, which owns identity and the product catalog.
package marketplace

// Principal is a verified identity resolved from a credential.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// Product is a catalog item as the marketplace service describes it.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SellerID string `json:"sellerId"`
	Sold     bool   `json:"sold"`
}

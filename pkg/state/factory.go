package state

const (
	// CatalogDir is the directory name for persisted catalogs
	CatalogDir = "catalog"
)

// NewCatalogStore creates a store for the persisted gateway catalogs
func NewCatalogStore(appName string) (*LocalStore, error) {
	return NewLocalStore(appName, CatalogDir)
}

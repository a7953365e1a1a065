package cli

import (
	"fmt"

	"github.com/relaygrid/relaygridgo/internal/store"
	storesync "github.com/relaygrid/relaygridgo/internal/store/sync"
)

// openStore resolves database_uri to the store.Store the concrete
// relstore.Store or backup.Store implements, reusing the scheme dispatch
// internal/store/sync already applies for the copy utility (a
// "backup:<dir>" prefix vs. everything else) rather than duplicating it.
func openStore(uri string) (store.Store, error) {
	raw, err := storesync.Open(uri)
	if err != nil {
		return nil, err
	}
	s, ok := raw.(store.Store)
	if !ok {
		return nil, fmt.Errorf("cli: %T does not implement store.Store", raw)
	}
	return s, nil
}

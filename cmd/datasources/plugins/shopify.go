package plugins

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/winhowes/RemoteData/app/datasource"
)

// Shopify returns an entry for the Admin API of one store.
func Shopify(name, store, tokenRef string) Entry {
	return Entry{Name: name, Config: datasource.Config{Service: "shopify", ServiceConfig: map[string]interface{}{
		"store_name":   store,
		"access_token": tokenRef,
	}}}
}

func init() {
	Register("shopify", func(fs *pflag.FlagSet) func() (Entry, error) {
		name := fs.String("name", "shopify", "data source name")
		store := fs.String("store", "", "store name, the part before .myshopify.com")
		token := fs.String("token", "", "secret reference for the access token")
		return func() (Entry, error) {
			if *store == "" || *token == "" {
				return Entry{}, fmt.Errorf("--store and --token are required")
			}
			return Shopify(*name, *store, *token), nil
		}
	})
}

package plugins

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/winhowes/RemoteData/app/datasource"
)

// GitHub returns an entry for the files of one repository. tokenRef may be
// empty for public repositories.
func GitHub(name, owner, repo, ref, tokenRef string) Entry {
	cfg := map[string]interface{}{
		"repo_owner": owner,
		"repo_name":  repo,
		"ref":        ref,
	}
	if tokenRef != "" {
		cfg["token"] = tokenRef
	}
	return Entry{Name: name, Config: datasource.Config{Service: "github", ServiceConfig: cfg}}
}

func init() {
	Register("github", func(fs *pflag.FlagSet) func() (Entry, error) {
		name := fs.String("name", "github", "data source name")
		owner := fs.String("owner", "", "repository owner")
		repo := fs.String("repo", "", "repository name")
		ref := fs.String("ref", "main", "branch, tag or commit")
		token := fs.String("token", "", "secret reference for the API token")
		return func() (Entry, error) {
			if *owner == "" || *repo == "" {
				return Entry{}, fmt.Errorf("--owner and --repo are required")
			}
			return GitHub(*name, *owner, *repo, *ref, *token), nil
		}
	})
}

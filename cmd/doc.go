// Package cmd defines and implements the CLI commands for the catalog executable.
//
//   - run:   scrape, enrich, publish, notify and load in one invocation.
//   - load:  reload the published catalog into the item store.
//   - serve: expose the same entry points over HTTP.
package cmd

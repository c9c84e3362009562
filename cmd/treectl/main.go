// Command treectl manages a closure-table forest from the shell.
//
// Usage:
//
//	treectl [--config tree.yaml] <command>
//
// The store is picked by database.driver (sqlite or postgres); see
// internal/cli for the configuration keys and TREE_* environment variables.
package main

func main() {
	Execute()
}

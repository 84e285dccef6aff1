// serve_config.go defines the configuration for serving a node.

package node

type ServeConfig struct {
	DebugData any
}

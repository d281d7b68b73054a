// Package auth contains the identity and session subsystem: the user and
// token entity graph, the pluggable provider contract, the durable auth
// store, and the manager that orchestrates them.
package auth

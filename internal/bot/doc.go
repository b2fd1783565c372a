// Package bot defines the core types, collaborator interfaces and error
// taxonomy shared by the snapshot pipeline. Implementations live in other
// packages; this package must not import database drivers or HTTP clients.
package bot

// Package local provides an in-process module container for modrun.
//
// Importing the package registers the container under the name "local":
//
//	import _ "github.com/chenyanchen/modrun/local"
//
// A module file is a zip archive carrying a module.yaml manifest:
//
//	name: billing
//	version: 1.2.0
//	requires: [storage]
//	activator: billing
//
// Archives with a META-INF/MANIFEST.MF are read too. Module-* headers win over the
// Bundle-SymbolicName, Bundle-Version, Require-Bundle and Fragment-Host headers.
// Files that are not zip archives install as unnamed modules.
//
// Relink wires requirements by name, stops affected modules in reverse order and restarts them in
// dependency order. Activators registered in DefaultActivators run on start and stop.
package local

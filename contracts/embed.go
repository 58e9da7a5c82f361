// Package contracts bundles the contract artifacts so binaries do not
// depend on a build directory at runtime.
package contracts

import "embed"

// Artifacts holds contract artifacts in Foundry's layout, rooted at "out".
//
// out/SimpleStorage.sol/SimpleStorage.json is not solc output. Its bytecode
// is hand-assembled to the same ABI as src/SimpleStorage.sol: a selector
// dispatch over store(uint256) and retrieve() with storage slot 0, and no
// callvalue check, free memory pointer or metadata trailer.
//
//go:embed out
var Artifacts embed.FS

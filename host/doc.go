// Package host implements the host side of the callback contract.
//
// Modules never see a host pointer. They receive an abi.HostContext, a small
// integer issued by Contexts, and pass it back with every callback. Callbacks
// resolve it to a world before mutating anything, so a stale or forged
// handle is logged and ignored.
package host

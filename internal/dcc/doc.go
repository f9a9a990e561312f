// Package dcc defines the adapter boundary between the core and host
// applications, plus the standalone file-copy adapter used outside any host.
package dcc

// Package cli implements rrctl, the command line client of the rrserverd
// admin API.
package cli

// Package utils holds small one-off helpers shared across commands.
package utils

var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

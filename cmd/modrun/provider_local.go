//go:build !nolocal

package main

import (
	_ "github.com/chenyanchen/modrun/local"
)

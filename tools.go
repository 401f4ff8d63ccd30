//go:build tools

package main

import (
	_ "go.uber.org/mock/mockgen"
)

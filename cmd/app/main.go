package main

import (
	"fmt"
	"os"

	"github.com/brianYuDesign/balance-engine/internal/bootstrap"
	"github.com/brianYuDesign/balance-engine/pkg"
)

func main() {
	pkg.InitLocalEnvConfig()

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "startup failure: %v\n", r)
			os.Exit(1)
		}
	}()

	bootstrap.InitService().Run()
}

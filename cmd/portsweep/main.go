package main

import (
	"context"
	"fmt"
	"os"

	"portsweep"
)

func main() {
	if err := portsweep.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "portsweep:", err)
		os.Exit(1)
	}
}

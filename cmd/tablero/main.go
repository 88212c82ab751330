package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tablero/internal/cli"
)

func main() {
	app := &cli.App{}
	err := cli.NewRootCmd(app).ExecuteContext(context.Background())
	if err = errors.Join(err, app.Close()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
)

func main() {
	app := mustBootstrapVinAPI()
	defer app.Close()

	if err := runVinAPI(app.ctx, app.opts, app.svc); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}

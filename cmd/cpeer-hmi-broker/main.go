package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/hmibroker/cmd/cpeer-hmi-broker/app"
)

func main() {
	app.NewApp().Run()
}

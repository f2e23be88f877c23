package main

import (
	"os"

	"github.com/adanyl0v/taskdock/internal/app"
)

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustOpenStore()
	app.MustConnectRedis()
	app.InitEventHub()

	app.MustStartHTTP()

	os.Exit(app.WaitForShutdown())
}

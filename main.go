package main

import (
	"animebingo.dev/backend-next/cmd/app"
)

func main() {
	app.Run()
}

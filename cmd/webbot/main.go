package main

import (
	"log"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

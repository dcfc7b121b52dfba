package main

import (
	"log"

	"marketplace-oauth/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

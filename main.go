package main

import (
	"github.com/joho/godotenv"

	"github.com/zalepa/medicmap/cmd"
)

func init() {
	_ = godotenv.Load()
}

func main() {
	cmd.Execute()
}

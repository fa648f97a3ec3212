package main

import "github.com/bajpainaman/Avalytics/internal/cli"

func main() {
	cli.Execute()
}

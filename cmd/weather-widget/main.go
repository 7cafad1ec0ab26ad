package main

import "github.com/i474232898/weather-widget/cmd/weather-widget/cmd"

func main() {
	cmd.Execute()
}
